package service

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const base36Upper = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewOrderNumber returns SA-<unix millis in base36>-<4 random base36 chars>,
// all upper case, e.g. SA-LZ3K9Q1B-7XQ2.
func NewOrderNumber() string {
	return formatOrderNumber(time.Now(), rand.IntN)
}

func formatOrderNumber(now time.Time, intn func(int) int) string {
	var b strings.Builder
	b.WriteString("SA-")
	b.WriteString(strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)))
	b.WriteByte('-')
	for i := 0; i < 4; i++ {
		b.WriteByte(base36Upper[intn(len(base36Upper))])
	}
	return b.String()
}
