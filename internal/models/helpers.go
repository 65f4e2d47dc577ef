package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func GenerateBetID() string {
	return fmt.Sprintf("bet_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

func GenerateEventID() string {
	return uuid.NewString()
}

// GenerateClientSeed returns a suggested client seed for callers that do not
// bring their own.
func GenerateClientSeed() (string, error) {
	bytes := make([]byte, 16)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate client seed: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// Paginate clamps page into [1, totalPages] and returns the slice bounds.
// An empty collection still reports page 1.
func Paginate(total, page, pageSize int) (start, end, currentPage, totalPages int) {
	if pageSize < 1 {
		pageSize = 1
	}
	totalPages = (total + pageSize - 1) / pageSize
	currentPage = max(1, page)
	currentPage = min(currentPage, max(totalPages, 1))
	start = min((currentPage-1)*pageSize, total)
	end = min(start+pageSize, total)
	return start, end, currentPage, totalPages
}
