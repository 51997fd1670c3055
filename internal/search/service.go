package search

import (
	"context"
	"log"
)

// Service routes queries to Meilisearch when it is healthy and to the
// Postgres fallback otherwise. Index writes are best-effort: a failed write
// is logged and the source row in Postgres remains authoritative.
type Service struct {
	meili    *Meili
	fallback *Postgres
}

// New builds the facade. meili may be nil when Meilisearch is not
// configured; every query then goes to the fallback.
func New(meili *Meili, fallback *Postgres) *Service {
	return &Service{meili: meili, fallback: fallback}
}

func (s *Service) Search(ctx context.Context, q Query) (Response, error) {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}, nil
		}
		log.Printf("search: meilisearch query failed, using fallback: %v", err)
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		return Response{}, err
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}, nil
}

// IndexCard pushes a card into the index in the background.
func (s *Service) IndexCard(card CardRecord) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.IndexCard(card); err != nil {
			log.Printf("search: index card %s: %v", card.ID, err)
		}
	}()
}

// IndexBoard pushes a board into the index in the background.
func (s *Service) IndexBoard(board BoardRecord) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.IndexBoard(board); err != nil {
			log.Printf("search: index board %s: %v", board.ID, err)
		}
	}()
}

// RemoveCard deletes a card from the index in the background.
func (s *Service) RemoveCard(id string) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.DeleteCard(id); err != nil {
			log.Printf("search: delete card %s: %v", id, err)
		}
	}()
}

// RemoveBoard deletes a board from the index in the background.
func (s *Service) RemoveBoard(id string) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.DeleteBoard(id); err != nil {
			log.Printf("search: delete board %s: %v", id, err)
		}
	}()
}
