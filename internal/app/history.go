package app

import (
	"context"

	"github.com/engagely/points-service/internal/domain"
	"github.com/engagely/points-service/internal/store"
	"github.com/google/uuid"
)

// GetHistory returns one page of ledger entries, newest first. Pass the returned
// NextCursor to fetch the following page; an empty NextCursor means the end.
func (s *Service) GetHistory(ctx context.Context, accountID uuid.UUID, cursorToken string, limit int) (*domain.HistoryPage, error) {
	cursor, err := store.DecodeHistoryCursor(cursorToken)
	if err != nil {
		return nil, err
	}
	limit = store.NormalizeLimit(limit)

	if _, err := s.repo.FindAccountByID(ctx, accountID); err != nil {
		return nil, err
	}

	entries, err := s.repo.ListLedgerEntries(ctx, accountID, cursor, limit)
	if err != nil {
		return nil, err
	}

	page := &domain.HistoryPage{Entries: entries}
	if page.Entries == nil {
		page.Entries = []domain.LedgerEntry{}
	}
	if len(entries) == limit {
		last := entries[len(entries)-1]
		page.NextCursor = store.HistoryCursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	return page, nil
}
