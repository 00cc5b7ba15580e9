// Package service contains thin infrastructure implementations of the
// application-layer interfaces: id and token generators and the two
// platform notifiers (lessons and scoring results).
package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// IDGeneratorImpl implements command.IDGenerator with UUIDv4.
type IDGeneratorImpl struct{}

// NewIDGenerator creates a new IDGeneratorImpl.
func NewIDGenerator() *IDGeneratorImpl {
	return &IDGeneratorImpl{}
}

// GenerateID returns a new UUID string.
func (g *IDGeneratorImpl) GenerateID() string {
	return uuid.New().String()
}

// AgentTokenGenerator implements command.TokenGenerator. The token
// authenticates the doctor-facing preview pages, one per contract.
type AgentTokenGenerator struct{}

// NewAgentTokenGenerator creates a new AgentTokenGenerator.
func NewAgentTokenGenerator() *AgentTokenGenerator {
	return &AgentTokenGenerator{}
}

// GenerateToken returns 32 hex characters from a CSPRNG.
func (g *AgentTokenGenerator) GenerateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
