package queries

import (
	"context"

	"github.com/Oregand/obai-sub000/internal/wallet/domain"
	"github.com/google/uuid"
)

// QuotaCache caches free-message counts to keep the hot chat path off the
// database. Implementations return found=false on a miss.
type QuotaCache interface {
	Get(ctx context.Context, userID uuid.UUID) (used int, found bool, err error)
	Set(ctx context.Context, userID uuid.UUID, used int) error
}

// FreeMessagesQuery requests a user's free-message quota status.
type FreeMessagesQuery struct {
	UserID uuid.UUID
}

// FreeMessagesHandler handles the FreeMessagesQuery.
type FreeMessagesHandler struct {
	messageRepo domain.MessageRepository
	cache       QuotaCache
	failOpen    bool
}

// NewFreeMessagesHandler creates a new FreeMessagesHandler. cache may be nil
// when no cache is configured.
func NewFreeMessagesHandler(messageRepo domain.MessageRepository, cache QuotaCache, failOpen bool) *FreeMessagesHandler {
	return &FreeMessagesHandler{messageRepo: messageRepo, cache: cache, failOpen: failOpen}
}

// Handle executes the FreeMessagesQuery. Cache errors are treated as misses;
// with fail-open enabled a storage failure grants the free message.
func (h *FreeMessagesHandler) Handle(ctx context.Context, query FreeMessagesQuery) (*domain.FreeMessageStatus, error) {
	if h.cache != nil {
		if used, found, err := h.cache.Get(ctx, query.UserID); err == nil && found {
			status := domain.NewFreeMessageStatus(used)
			return &status, nil
		}
	}

	used, err := h.messageRepo.CountFree(ctx, query.UserID)
	if err != nil {
		if !h.failOpen {
			return nil, err
		}
		used = 0
	} else if h.cache != nil {
		_ = h.cache.Set(ctx, query.UserID, used)
	}

	status := domain.NewFreeMessageStatus(used)
	return &status, nil
}
