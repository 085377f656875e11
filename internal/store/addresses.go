package store

import (
	"context"

	"partyshop/internal/models"
)

// ListAddresses returns a user's saved addresses in the order they were saved
func (s *Store) ListAddresses(ctx context.Context, userID string) ([]models.Address, error) {
	addresses := []models.Address{}
	err := s.db.SelectContext(ctx, &addresses,
		"SELECT address FROM user_addresses WHERE user_id = $1 ORDER BY id", userID)
	if err != nil {
		return nil, classify(err, "", "")
	}
	return addresses, nil
}

// AddAddress saves an address for a user
func (s *Store) AddAddress(ctx context.Context, userID string, addr models.Address) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO user_addresses (user_id, address) VALUES ($1, $2)", userID, addr)
	return classify(err, "", "")
}
