package services

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	resp "vivuplanner/internal/models/response_models"
	"vivuplanner/internal/repositories"
)

type CandidatePool struct {
	Center       GeocodeResult
	Candidates   []resp.CandidatePoi
	SourceCounts map[string]int
}

type CandidatePoolServiceInterface interface {
	// Build gathers candidates for in; limit <= 0 means uncapped.
	Build(ctx context.Context, in PlanInput, limit int) (*CandidatePool, error)
}

type CandidatePoolService struct {
	geocode          GeocodeServiceInterface
	nearby           NearbyServiceInterface
	poiRepo          repositories.POIRepository
	perInterestLimit int
	log              *zap.Logger
}

func NewCandidatePoolService(geocode GeocodeServiceInterface, nearby NearbyServiceInterface, poiRepo repositories.POIRepository, perInterestLimit int, log *zap.Logger) CandidatePoolServiceInterface {
	if perInterestLimit <= 0 {
		perInterestLimit = 12
	}
	return &CandidatePoolService{
		geocode:          geocode,
		nearby:           nearby,
		poiRepo:          poiRepo,
		perInterestLimit: perInterestLimit,
		log:              log,
	}
}

func (s *CandidatePoolService) Build(ctx context.Context, in PlanInput, limit int) (*CandidatePool, error) {
	center, err := s.geocode.Resolve(ctx, in.Request.Destination)
	if err != nil {
		return nil, err
	}

	known, err := s.poiRepo.ListByDestination(ctx, in.Request.Destination, 0)
	if err != nil {
		s.log.Warn("known poi lookup failed", zap.String("destination", in.Request.Destination), zap.Error(err))
		known = nil
	}

	perInterest := make([][]resp.CandidatePoi, len(in.Interests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, interest := range in.Interests {
		i, interest := i, interest
		g.Go(func() error {
			found, err := s.nearby.Nearby(gctx, center.Point, interest, s.perInterestLimit)
			if err != nil {
				s.log.Warn("nearby lookup failed", zap.String("interest", interest), zap.Error(err))
				return nil
			}
			perInterest[i] = found
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]resp.CandidatePoi, 0, len(known))
	for _, p := range known {
		merged = append(merged, candidateFromPOI(p, center.Point, SourceKnown))
	}
	for _, found := range perInterest {
		merged = append(merged, found...)
	}

	candidates := RankCandidates(merged)
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	counts := make(map[string]int)
	for _, c := range candidates {
		counts[c.Source()]++
	}
	return &CandidatePool{Center: center, Candidates: candidates, SourceCounts: counts}, nil
}

// RankCandidates removes duplicate keys (first occurrence wins) and sorts by
// rating desc, then name, provider, provider_id.
func RankCandidates(in []resp.CandidatePoi) []resp.CandidatePoi {
	seen := make(map[resp.PoiKey]struct{}, len(in))
	out := make([]resp.CandidatePoi, 0, len(in))
	for _, c := range in {
		if _, dup := seen[c.Key()]; dup {
			continue
		}
		seen[c.Key()] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		return a.ProviderID < b.ProviderID
	})
	return out
}
