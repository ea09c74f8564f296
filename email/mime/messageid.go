package mailmime

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"os"
	"time"

	"github.com/mailbridge/go-mailbridge/types"
)

var maxBigInt = big.NewInt(math.MaxInt64)

// GenerateMessageID generates and returns a string suitable for an RFC 2822
// compliant Message-ID, e.g.:
// <1444789264909237300.3464.1819418242800517193@DESKTOP01>
//
// The following parameters are used to generate a Message-ID:
// - The nanoseconds since Epoch
// - The calling PID
// - A cryptographically random int64
// - The sending hostname
func GenerateMessageID(hostname string) (string, error) {
	t := time.Now().UnixNano()
	pid := os.Getpid()
	rint, err := rand.Int(rand.Reader, maxBigInt)
	if err != nil {
		return "", err
	}
	if hostname == "" {
		return "", types.ErrInternal
	}
	return fmt.Sprintf("<%d.%d.%d@%s>", t, pid, rint, hostname), nil
}
