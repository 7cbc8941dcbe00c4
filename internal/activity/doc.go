// Package activity содержит вызываемые единицы работы pipeline.
//
// Activity — это именованная request/response функция. Executor не
// знает, что внутри: он резолвит имя через Registry (local) или
// отправляет запрос в task queue (remote) и ждёт результат.
//
// Встроенные activities:
//
//	chunk_documents   — разбиение документов на фрагменты
//	embed_and_index   — embeddings + запись в векторное хранилище
//	search_documents  — поиск по векторному хранилищу
//	health_check      — проверка живости worker
package activity
