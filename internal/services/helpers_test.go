package services

import (
	"github.com/google/uuid"

	"admin-console-backend/internal/auth"
	"admin-console-backend/internal/store"
)

// storeUserParams builds a unique throwaway user for test fixtures.
func storeUserParams() store.CreateUserParams {
	return store.CreateUserParams{
		Email:          uuid.NewString() + "@example.com",
		HashedPassword: "not-a-real-hash",
		Role:           auth.RoleMember,
	}
}
