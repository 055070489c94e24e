package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressDrawsAndClears(t *testing.T) {
	var out bytes.Buffer
	bar := startProgress(&out)
	time.Sleep(250 * time.Millisecond)
	bar.Stop()

	s := out.String()
	assert.True(t, strings.HasPrefix(s, "\r["))
	assert.Contains(t, s, "#")
	assert.True(t, strings.HasSuffix(s, "\r\033[K"))
}
