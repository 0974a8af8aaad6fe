// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/domain/models"
)

// NatsSessionIndex maps session uids to their owning participant.
type NatsSessionIndex struct {
	refs *NatsBaseRepository[models.SessionRef]
	keys *KeyBuilder
}

// NewNatsSessionIndex creates the session index on top of a KV bucket.
func NewNatsSessionIndex(refs INatsKeyValue, codec Codec) *NatsSessionIndex {
	return &NatsSessionIndex{
		refs: NewNatsBaseRepository[models.SessionRef](refs, "session", codec),
		keys: NewKeyBuilder(""),
	}
}

func (s *NatsSessionIndex) PutSessionRef(ctx context.Context, ref *models.SessionRef) error {
	_, err := s.refs.Create(ctx, s.keys.SessionRefKey(ref.SessionUID), ref)
	return err
}

func (s *NatsSessionIndex) GetSessionRef(ctx context.Context, sessionUID string) (*models.SessionRef, error) {
	ref, err := s.refs.Get(ctx, s.keys.SessionRefKey(sessionUID))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return nil, domain.NewNotFoundError("session not found", err)
		}
		return nil, err
	}
	return ref, nil
}
