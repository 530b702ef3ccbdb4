package builtin

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type Func func(args []string) any

// Registry maps function names to implementations. It is read-only after
// construction unless Register is called, so it is safe for concurrent Call.
type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: map[string]Func{
			"uuid":         funcUUID,
			"now":          funcNow,
			"timestamp":    funcTimestamp,
			"timestampMs":  funcTimestampMs,
			"date":         funcDate,
			"random":       funcRandom,
			"randomString": funcRandomString,
			"randomEmail":  funcRandomEmail,
			"base64":       funcBase64,
			"sha256":       funcSHA256,
			"urlEncode":    funcURLEncode,
		},
	}
	return r
}

// Register adds or replaces a function. Call it before the registry is shared.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

var callPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// IsCall reports whether expr looks like name(args).
func IsCall(expr string) bool {
	return callPattern.MatchString(expr)
}

// Call evaluates expr of the form name(arg1, "arg 2"). The second return value
// is false when expr is not a call or names an unknown function.
func (r *Registry) Call(expr string) (any, bool) {
	m := callPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return nil, false
	}
	fn, ok := r.funcs[m[1]]
	if !ok {
		return nil, false
	}
	return fn(splitArgs(m[2])), true
}

func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var args []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote == 0 && (ch == '"' || ch == '\''):
			quote = ch
		case quote != 0 && ch == quote:
			quote = 0
		case quote == 0 && ch == ',':
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	return append(args, strings.TrimSpace(cur.String()))
}

func intArg(args []string, i, def int) int {
	if len(args) <= i {
		return def
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return def
	}
	return v
}

func funcUUID(_ []string) any {
	return uuid.NewString()
}

func funcNow(_ []string) any {
	return time.Now().UTC().Format(time.RFC3339)
}

func funcTimestamp(_ []string) any {
	return time.Now().Unix()
}

func funcTimestampMs(_ []string) any {
	return time.Now().UnixMilli()
}

func funcDate(args []string) any {
	layout := "2006-01-02"
	if len(args) > 0 && args[0] != "" {
		layout = args[0]
	}
	return time.Now().UTC().Format(layout)
}

func funcRandom(args []string) any {
	lo, hi := intArg(args, 0, 0), intArg(args, 1, 100)
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + rand.IntN(hi-lo+1)
}

func funcRandomString(args []string) any {
	n := intArg(args, 0, 16)
	if n < 0 {
		n = 0
	}
	return randomString(n, alphanumeric)
}

func funcRandomEmail(_ []string) any {
	return fmt.Sprintf("%s@%s.test", randomString(8, alphanumeric[:26]), randomString(6, alphanumeric[:26]))
}

func funcBase64(args []string) any {
	if len(args) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0]))
}

func funcSHA256(args []string) any {
	if len(args) == 0 {
		return ""
	}
	sum := sha256.Sum256([]byte(args[0]))
	return hex.EncodeToString(sum[:])
}

func funcURLEncode(args []string) any {
	if len(args) == 0 {
		return ""
	}
	return url.QueryEscape(args[0])
}

func randomString(n int, charset string) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = charset[rand.IntN(len(charset))]
	}
	return string(b)
}
