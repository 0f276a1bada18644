// README: Redis GEO index of drop locations used to narrow nearby searches.
package drop

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"dropspot/internal/types"
)

const dropGeoKey = "drops:geo"

type GeoIndex struct {
	redis *redis.Client
}

func NewGeoIndex(redis *redis.Client) *GeoIndex {
	return &GeoIndex{redis: redis}
}

func (g *GeoIndex) Add(ctx context.Context, id int64, p types.Point) error {
	return g.redis.GeoAdd(ctx, dropGeoKey, &redis.GeoLocation{
		Name:      strconv.FormatInt(id, 10),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

func (g *GeoIndex) Remove(ctx context.Context, id int64) error {
	return g.redis.ZRem(ctx, dropGeoKey, strconv.FormatInt(id, 10)).Err()
}

// Replace rebuilds the index from scratch in one pipeline.
func (g *GeoIndex) Replace(ctx context.Context, drops []Drop) error {
	pipe := g.redis.TxPipeline()
	pipe.Del(ctx, dropGeoKey)
	if len(drops) > 0 {
		locs := make([]*redis.GeoLocation, len(drops))
		for i, d := range drops {
			locs[i] = &redis.GeoLocation{
				Name:      strconv.FormatInt(d.ID, 10),
				Longitude: d.Location.Lng,
				Latitude:  d.Location.Lat,
			}
		}
		pipe.GeoAdd(ctx, dropGeoKey, locs...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Search returns ids of indexed drops within radiusKm of p, nearest first.
func (g *GeoIndex) Search(ctx context.Context, p types.Point, radiusKm float64) ([]int64, error) {
	results, err := g.redis.GeoSearch(ctx, dropGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
