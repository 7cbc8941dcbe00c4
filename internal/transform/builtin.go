package transform

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/Cascade/internal/domain"
)

// Passthrough — transform по умолчанию.
// Список остаётся как есть, не-список оборачивается в одноэлементный список.
func Passthrough(data any, _ domain.Step, _ any, _ string) ([]any, error) {
	if list, ok := asList(data); ok {
		return list, nil
	}
	return []any{data}, nil
}

// QueryWithCollection нормализует вход поискового шага
// в [query string, collection string, topK int].
//
// Принимаемые формы:
//   - строка "q"                        → ["q", defaultCollection, 10]
//   - одноэлементный список ["q"]       → ["q", defaultCollection, 10]
//   - map {query, collection?, top_k?}  → значения из map, недостающие — defaults
//   - nil / пустой список               → ["", defaultCollection, 10]
//
// Разные upstream-источники (HTTP API, chat UI, другой шаг) передают
// логически одно и то же разными формами — в этом и есть смысл слоя transforms.
func QueryWithCollection(data any, _ domain.Step, _ any, defaultCollection string) ([]any, error) {
	query := ""
	collection := defaultCollection
	topK := defaultTopK

	switch v := data.(type) {
	case nil:
		// пустой запрос

	case string:
		query = v

	case map[string]any:
		q, err := stringField(v, "query")
		if err != nil {
			return nil, err
		}
		query = q

		if c, ok := v["collection"]; ok {
			s, ok := c.(string)
			if !ok {
				return nil, fmt.Errorf("%w: collection must be a string, got %T", ErrTransform, c)
			}
			collection = s
		}

		if k, ok := v["top_k"]; ok {
			n, err := asInt(k)
			if err != nil {
				return nil, fmt.Errorf("%w: top_k: %v", ErrTransform, err)
			}
			topK = n
		}

	default:
		list, ok := asList(v)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported query input type %T", ErrTransform, data)
		}
		if len(list) > 0 {
			s, ok := list[0].(string)
			if !ok {
				return nil, fmt.Errorf("%w: query must be a string, got %T", ErrTransform, list[0])
			}
			query = s
		}
	}

	return []any{query, collection, topK}, nil
}

// Documents нормализует вход в плоский список записей-документов.
//
// Принимаемые формы:
//   - map с ключом retrieved_documents → этот список
//   - map с ключом documents           → этот список
//   - список                           → без изменений
//   - одиночная запись                 → одноэлементный список
//   - nil                              → пустой список
func Documents(data any, _ domain.Step, _ any, _ string) ([]any, error) {
	switch v := data.(type) {
	case nil:
		return []any{}, nil

	case map[string]any:
		for _, key := range []string{"retrieved_documents", "documents"} {
			if raw, ok := v[key]; ok {
				list, ok := asList(raw)
				if !ok {
					return nil, fmt.Errorf("%w: %s must be a list, got %T", ErrTransform, key, raw)
				}
				return list, nil
			}
		}
		// map без известных ключей — одиночная запись-документ
		return []any{v}, nil

	default:
		if list, ok := asList(v); ok {
			return list, nil
		}
		return []any{v}, nil
	}
}

// ChunkedDocsWithCollection нормализует результат chunk-шага
// в [chunkList, collectionName].
//
// Снимает произвольно вложенную одноэлементную обёртку ([[chunks]] → [chunks]).
// Коллекция берётся из поля collection исходного входа pipeline,
// иначе — defaultCollection.
func ChunkedDocsWithCollection(data any, _ domain.Step, original any, defaultCollection string) ([]any, error) {
	chunks, ok := asList(data)
	if !ok {
		if data == nil {
			chunks = []any{}
		} else {
			chunks = []any{data}
		}
	}

	// Разворачиваем [[chunks]] → [chunks], сколько бы слоёв ни накрутили
	for len(chunks) == 1 {
		inner, ok := asList(chunks[0])
		if !ok {
			break
		}
		chunks = inner
	}

	collection := defaultCollection
	if m, ok := original.(map[string]any); ok {
		if c, ok := m["collection"].(string); ok && c != "" {
			collection = c
		}
	}

	return []any{chunks, collection}, nil
}

// asList приводит значение к []any, если это список.
// Поддерживает типизированные слайсы, пришедшие не из JSON.
func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(list))
		for i, m := range list {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

// stringField извлекает обязательное строковое поле из map.
// Отсутствующее поле — пустая строка, поле не-строка — ошибка.
func stringField(m map[string]any, key string) (string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrTransform, key, raw)
	}
	return s, nil
}

// asInt приводит числовое значение (включая JSON-числа) к int.
func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, err
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
