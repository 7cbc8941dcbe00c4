package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/telemetry"
)

// ErrDiscovery — control plane недоступен целиком.
//
// Провалы отдельных кандидатов (очередь не существует, endpoint не
// отвечает) сюда не попадают: частичное discovery — норма.
var ErrDiscovery = errors.New("discovery error")

// DefaultTTL — время жизни кэшированного каталога.
const DefaultTTL = 30 * time.Second

// queueNameVariants — шаблоны имён очередей, выводимые из имени сервиса.
var queueNameVariants = []string{"%s-task-queue", "%s-queue", "%s.tasks"}

// Options — настройки discovery.
type Options struct {
	// TTL — время жизни кэша каталога (default: 30s).
	TTL time.Duration

	// Client — HTTP-клиент для metadata endpoints.
	Client *http.Client

	// Now — источник времени (подменяется в тестах).
	Now func() time.Time
}

// Service строит каталог сервисов из двух источников: control plane
// (какие очереди имеют живых workers) и metadata endpoints самих
// workers (какие activities они несут).
type Service struct {
	control   ControlPlane
	endpoints []string
	client    *http.Client
	log       *slog.Logger
	ttl       time.Duration
	now       func() time.Time

	mu       sync.Mutex
	cached   *domain.ServiceCatalog
	cachedAt time.Time

	// knownQueues и knownServices пополняются после каждого прохода
	// metadata — кандидаты для describe на следующих проходах.
	knownQueues   map[string]struct{}
	knownServices map[string]struct{}
}

// NewService создаёт discovery service.
// endpoints — адреса (host:port) metadata endpoints workers.
func NewService(control ControlPlane, endpoints []string, log *slog.Logger, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 5 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		control:       control,
		endpoints:     endpoints,
		client:        opts.Client,
		log:           log,
		ttl:           opts.TTL,
		now:           opts.Now,
		knownQueues:   make(map[string]struct{}),
		knownServices: make(map[string]struct{}),
	}
}

// ActiveTaskQueues возвращает имена очередей, у которых есть хотя бы
// один живой poller.
//
// Кандидаты: очереди из ранее увиденных metadata плюс конвенционные
// варианты имён от известных сервисов. NOT_FOUND на describe означает
// "этой очереди нет" — кандидаты с выдуманными именами так отсеиваются
// постоянно. Control plane считается недоступным, только когда ни один
// describe не прошёл и хотя бы один упал не по причине отсутствия
// очереди.
func (s *Service) ActiveTaskQueues(ctx context.Context) ([]string, error) {
	candidates := s.queueCandidates()
	if len(candidates) == 0 {
		return nil, nil
	}

	var active []string
	described := 0
	brokerFailures := 0
	for _, queue := range candidates {
		info, err := s.control.DescribeQueue(ctx, queue)
		switch {
		case err == nil:
			described++
			if info.Consumers >= 1 {
				active = append(active, queue)
			}
		case mq.IsQueueNotFound(err):
			s.log.Debug("queue candidate absent", slog.String("queue", queue))
		default:
			brokerFailures++
			s.log.Debug("queue describe failed",
				slog.String("queue", queue),
				slog.String("error", err.Error()),
			)
		}
	}

	if described == 0 && brokerFailures > 0 {
		return nil, fmt.Errorf("%w: %d of %d queue describes failed", ErrDiscovery, brokerFailures, len(candidates))
	}

	sort.Strings(active)
	return active, nil
}

// ServiceMetadata опрашивает metadata endpoints всех известных workers.
//
// Endpoint, который не ответил, просто пропускается: частичное
// discovery — ожидаемое состояние, не ошибка.
func (s *Service) ServiceMetadata(ctx context.Context) *domain.ServiceCatalog {
	catalog := domain.NewServiceCatalog()

	for _, endpoint := range s.endpoints {
		meta, err := fetchMetadata(ctx, s.client, endpoint)
		if err != nil {
			s.log.Warn("worker metadata unavailable",
				slog.String("endpoint", endpoint),
				slog.String("error", err.Error()),
			)
			continue
		}

		info := meta.serviceInfo(endpoint)
		catalog.Services[info.Name] = info
		s.remember(info)
	}

	catalog.BuiltAt = s.now()
	return catalog
}

// Hybrid возвращает каталог с проставленным QueueStatus.
//
// Внутри TTL-окна возвращается кэшированный каталог без единого
// обращения к control plane. По истечении TTL каталог перестраивается
// и заменяется целиком.
func (s *Service) Hybrid(ctx context.Context) (*domain.ServiceCatalog, error) {
	s.mu.Lock()
	if s.cached != nil && s.now().Sub(s.cachedAt) < s.ttl {
		catalog := s.cached
		s.mu.Unlock()
		telemetry.DiscoveryCacheHits.Inc()
		return catalog, nil
	}
	s.mu.Unlock()

	catalog, err := s.refresh(ctx)
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

// Refresh принудительно перестраивает каталог, минуя TTL.
func (s *Service) Refresh(ctx context.Context) (*domain.ServiceCatalog, error) {
	return s.refresh(ctx)
}

// refresh выполняет полный проход discovery и кэширует результат.
func (s *Service) refresh(ctx context.Context) (*domain.ServiceCatalog, error) {
	catalog := s.ServiceMetadata(ctx)

	activeQueues, err := s.ActiveTaskQueues(ctx)
	if err != nil {
		// Control plane лежит: in-flight runs продолжают работать
		// на закэшированной конфигурации, а вот refresh — ошибка.
		return nil, err
	}

	activeSet := make(map[string]struct{}, len(activeQueues))
	for _, q := range activeQueues {
		activeSet[q] = struct{}{}
	}

	for name, svc := range catalog.Services {
		if _, ok := activeSet[svc.TaskQueue]; ok {
			svc.QueueStatus = domain.ServiceStatusActive
		} else {
			svc.QueueStatus = domain.ServiceStatusInactive
		}
		catalog.Services[name] = svc
	}

	s.mu.Lock()
	s.cached = catalog
	s.cachedAt = s.now()
	s.mu.Unlock()

	telemetry.DiscoveryRefreshes.Inc()
	telemetry.DiscoveredServices.Set(float64(len(catalog.Services)))
	s.log.Info("discovery pass finished",
		slog.Int("services", len(catalog.Services)),
		slog.Int("active_queues", len(activeQueues)),
	)
	return catalog, nil
}

// remember пополняет множества известных очередей и сервисов.
func (s *Service) remember(info domain.ServiceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info.TaskQueue != "" {
		s.knownQueues[info.TaskQueue] = struct{}{}
	}
	if info.Name != "" {
		s.knownServices[info.Name] = struct{}{}
	}
}

// queueCandidates собирает кандидатов для describe: известные очереди
// плюс конвенционные варианты имён известных сервисов.
func (s *Service) queueCandidates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]struct{}, len(s.knownQueues))
	for queue := range s.knownQueues {
		set[queue] = struct{}{}
	}
	for service := range s.knownServices {
		for _, pattern := range queueNameVariants {
			set[fmt.Sprintf(pattern, service)] = struct{}{}
		}
	}

	candidates := make([]string, 0, len(set))
	for queue := range set {
		candidates = append(candidates, queue)
	}
	sort.Strings(candidates)
	return candidates
}
