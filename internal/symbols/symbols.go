// Package symbols normalizes venue-native instrument symbols to the
// canonical BASE/USDT form and extracts decimal scales from tick/step
// size strings.
package symbols

import (
	"errors"
	"fmt"
	"strings"
)

// ErrQuoteSuffix reports a symbol that does not carry the expected USDT
// suffix. This is a venue-contract violation, not transient noise: the
// caller must surface it instead of silently dropping the symbol.
var ErrQuoteSuffix = errors.New("symbol does not end with USDT suffix")

// ExtractBase strips sep+"USDT" from an uppercased native symbol and
// returns the base asset. sep is "" for compact symbols (BTCUSDT) and
// "_" for underscore symbols (BTC_USDT).
func ExtractBase(nativeUpper, sep string) (string, error) {
	suffix := sep + "USDT"
	base := strings.TrimSuffix(nativeUpper, suffix)
	if base == nativeUpper || base == "" {
		return "", fmt.Errorf("%w: %s", ErrQuoteSuffix, nativeUpper)
	}
	return base, nil
}

// Join is the inverse of ExtractBase: Join("BTC", "_") == "BTC_USDT".
func Join(base, sep string) string {
	return strings.ToUpper(base) + sep + "USDT"
}

// IsUSDT reports whether the uppercased native symbol is USDT-quoted for
// the given separator.
func IsUSDT(nativeUpper, sep string) bool {
	_, err := ExtractBase(nativeUpper, sep)
	return err == nil
}

// Decimals counts the significant fractional digits of a tick/step size
// string. Trailing zeros do not count: Decimals("0.0100") == 2,
// Decimals("1") == 0, Decimals("") == 0.
func Decimals(step string) int {
	dot := strings.IndexByte(step, '.')
	if dot < 0 {
		return 0
	}
	frac := strings.TrimRight(step[dot+1:], "0")
	return len(frac)
}

// SplitPool splits a DEX native symbol of the form "chainId:pairAddress".
func SplitPool(native string) (chain, pair string, err error) {
	chain, pair, ok := strings.Cut(native, ":")
	if !ok || chain == "" || pair == "" {
		return "", "", fmt.Errorf("unexpected pool symbol (want chainId:pairAddress): %s", native)
	}
	return chain, pair, nil
}

// PoolSymbol builds the DEX native symbol from chain id and pair address.
func PoolSymbol(chain, pair string) string {
	return chain + ":" + pair
}
