package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

const (
	codeMin  = 100000
	codeSpan = 900000
)

// NewCode генерирует шестизначный код рукопожатия 100000..999999
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("failed to generate handshake code: %w", err)
	}
	return fmt.Sprintf("%06d", codeMin+n.Int64()), nil
}

// Fingerprint HKDF-SHA256 отпечаток сессии: код рукопожатия, связанный со станцией и ID сессии.
// Попадает в досье и позволяет сверить экспорт с исходной сессией, не раскрывая код.
func Fingerprint(code, node, sessionID string) (string, error) {
	reader := hkdf.New(sha256.New, []byte(code), []byte(sessionID), []byte("eda-forensics/session/"+node))

	out := make([]byte, 16)
	if _, err := io.ReadFull(reader, out); err != nil {
		return "", fmt.Errorf("failed to derive session fingerprint: %w", err)
	}
	return hex.EncodeToString(out), nil
}

// transitions разрешенные переходы. FORENSIC -> LOCKED возможен только через Reset.
var transitions = map[Stage][]Stage{
	StageLocked:      {StageOperational, StageForensic},
	StageOperational: {StageForensic},
}

func canTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
