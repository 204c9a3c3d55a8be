// utilitário pequeno para formatação de valores numéricos em headers.
// Evita puxar fmt só para isso.

package guard

import (
	"strconv"
	"time"
)

func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }

// retryAfterSeconds arredonda para cima e nunca retorna menos de 1:
// "Retry-After: 0" faria o cliente tentar de novo imediatamente.
func retryAfterSeconds(d time.Duration) int64 {
	secs := int64((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}
