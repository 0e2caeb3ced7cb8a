package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/transport"
)

// AccountDetails is the signed-in user's profile.
type AccountDetails struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// AccountService reads and updates the signed-in user's account.
type AccountService interface {
	Get(ctx context.Context) (*AccountDetails, error)
	UpdateName(ctx context.Context, name string) (*AccountDetails, error)
}

type accountService struct {
	doer Doer
}

func NewAccountService(doer Doer) AccountService {
	return &accountService{doer: doer}
}

func (s *accountService) Get(ctx context.Context) (*AccountDetails, error) {
	var out AccountDetails
	if err := doJSON(ctx, s.doer, &transport.Request{Method: http.MethodGet, Path: "/account"}, &out); err != nil {
		return nil, fmt.Errorf("get account error: %w", err)
	}
	return &out, nil
}

func (s *accountService) UpdateName(ctx context.Context, name string) (*AccountDetails, error) {
	req, err := transport.NewJSONRequest(http.MethodPut, "/account", map[string]string{"name": name})
	if err != nil {
		return nil, err
	}

	var out AccountDetails
	if err := doJSON(ctx, s.doer, req, &out); err != nil {
		return nil, fmt.Errorf("update account error: %w", err)
	}
	return &out, nil
}
