package devicegrant

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/oauthkit/devicegrant/internal/validation"
)

// DeviceCodeLength is the length of the device code in hex characters
// (32 random bytes).
const DeviceCodeLength = 64

// generateDeviceCode produces the opaque high-entropy secret the device
// polls with.
func generateDeviceCode() (string, error) {
	bytes := make([]byte, DeviceCodeLength/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// generateUserCode produces a user code in display format, drawn uniformly
// at random from the restricted charset.
func generateUserCode() (string, error) {
	var builder strings.Builder
	for group := 0; group < validation.GroupCount; group++ {
		if group > 0 {
			builder.WriteByte('-')
		}
		for i := 0; i < validation.GroupSize; i++ {
			c, err := randomChar(validation.Charset)
			if err != nil {
				return "", err
			}
			builder.WriteByte(c)
		}
	}
	return builder.String(), nil
}

// randomChar selects one character from the charset without modulo bias:
// bytes that would wrap unevenly are rejected and redrawn.
func randomChar(charset string) (byte, error) {
	maxNeeded := 256 - (256 % len(charset))
	b := make([]byte, 1)
	for {
		if _, err := rand.Read(b); err != nil {
			return 0, fmt.Errorf("reading random byte: %w", err)
		}
		if int(b[0]) >= maxNeeded {
			continue
		}
		return charset[int(b[0])%len(charset)], nil
	}
}
