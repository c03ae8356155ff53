package source

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"dramahub/pkg/models"
)

// Supported source keys. A key is the stable short name used in API
// params, cache keys and the (source, external_id) natural key.
const (
	DramaBox   = "dramabox"
	FlickReels = "flickreels"
	NetShort   = "netshort"
)

// Adapter is implemented by each upstream provider. Each adapter is
// responsible for fetching its own payload format and mapping it into
// the canonical model.
//
// Init performs one-time setup such as token acquisition. It fails
// soft: an auth failure is logged and the adapter is still used, since
// some endpoints may work unauthenticated.
type Adapter interface {
	Name() string
	Init(ctx context.Context) error
	GetHome(ctx context.Context) (*models.HomeData, error)
	Search(ctx context.Context, query string) ([]models.NormalizedDrama, error)
	GetDrama(ctx context.Context, id string) (*models.DramaDetail, error)
	GetEpisode(ctx context.Context, id string, episodeNumber int) (*models.NormalizedEpisode, error)
}

// ErrNotFound is returned when a valid upstream response does not
// contain the requested drama or episode.
var ErrNotFound = fmt.Errorf("not found")

// episodeFromDetail is the default GetEpisode strategy: full detail
// plus a linear scan. Adapters with a cheaper endpoint may override.
func episodeFromDetail(d *models.DramaDetail, episodeNumber int) (*models.NormalizedEpisode, error) {
	for i := range d.Episodes {
		if d.Episodes[i].EpisodeNumber == episodeNumber {
			return &d.Episodes[i], nil
		}
	}
	return nil, ErrNotFound
}

// Registry holds one adapter per supported source and initializes each
// lazily on first use.
type Registry struct {
	log   *zap.SugaredLogger
	order []string
	byKey map[string]*registered
}

type registered struct {
	adapter Adapter
	once    sync.Once
}

func NewRegistry(log *zap.SugaredLogger, adapters ...Adapter) *Registry {
	r := &Registry{
		log:   log,
		byKey: make(map[string]*registered, len(adapters)),
	}
	for _, a := range adapters {
		r.order = append(r.order, a.Name())
		r.byKey[a.Name()] = &registered{adapter: a}
	}
	return r
}

// Sources returns the supported source keys in registration order.
func (r *Registry) Sources() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Supported(source string) bool {
	_, ok := r.byKey[source]
	return ok
}

// Get returns the adapter for source, running Init exactly once. An
// Init error does not disable the adapter.
func (r *Registry) Get(ctx context.Context, source string) (Adapter, error) {
	reg, ok := r.byKey[source]
	if !ok {
		return nil, fmt.Errorf("unsupported source %q", source)
	}
	reg.once.Do(func() {
		if err := reg.adapter.Init(ctx); err != nil {
			r.log.Warnw("adapter init failed, continuing unauthenticated",
				"source", source, "error", err)
		}
	})
	return reg.adapter, nil
}

// urlQuery escapes a value for use in a query string.
func urlQuery(v string) string {
	return url.QueryEscape(v)
}

// enrichLatest fetches full detail for the first limit items that lack
// an episode count and fills TotalEpisodes in place. Items beyond the
// limit keep a nil count; per-item failures are tolerated.
func enrichLatest(ctx context.Context, a Adapter, items []models.NormalizedDrama, limit int) {
	var wg sync.WaitGroup
	enriched := 0
	for i := range items {
		if items[i].TotalEpisodes != nil {
			continue
		}
		if enriched >= limit {
			break
		}
		enriched++

		wg.Add(1)
		go func(item *models.NormalizedDrama) {
			defer wg.Done()
			detail, err := a.GetDrama(ctx, item.ID)
			if err != nil || detail == nil {
				return
			}
			if detail.TotalEpisodes != nil {
				item.TotalEpisodes = detail.TotalEpisodes
			} else if n := len(detail.Episodes); n > 0 {
				item.TotalEpisodes = &n
			}
		}(&items[i])
	}
	wg.Wait()
}
