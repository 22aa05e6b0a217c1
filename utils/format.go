package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const TokenDecimals = 18

var (
	secondsPerHour = big.NewInt(60 * 60)
	secondsPerDay  = big.NewInt(24 * 60 * 60)
	ppmPerPercent  = big.NewInt(10_000)
	millionTokens  = decimal.New(1, 6)
	thousandTokens = decimal.New(1, 3)
)

func FormatFloat(num float64, precision int) string {
	p := message.NewPrinter(language.English)
	f := fmt.Sprintf("%%.%vf", precision)
	s := strings.TrimRight(strings.TrimRight(p.Sprintf(f, num), "0"), ".")
	r := []rune(p.Sprintf(s, num))
	return string(r)
}

// FormatInt formats an integer with thousands separators.
func FormatInt(num int64) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%d", num)
}

// FormatAddCommas groups the integer part of a decimal string with commas.
func FormatAddCommas(num string) string {
	sign := ""
	if strings.HasPrefix(num, "-") {
		sign = "-"
		num = num[1:]
	}

	intPart, fracPart, hasFrac := strings.Cut(num, ".")
	if len(intPart) > 3 {
		var buf strings.Builder
		head := len(intPart) % 3
		if head > 0 {
			buf.WriteString(intPart[:head])
		}
		for i := head; i < len(intPart); i += 3 {
			if buf.Len() > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(intPart[i : i+3])
		}
		intPart = buf.String()
	}

	if hasFrac {
		return sign + intPart + "." + fracPart
	}
	return sign + intPart
}

// TokensToDecimal converts an amount in the smallest unit (18 decimals) to whole tokens.
func TokensToDecimal(amount *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(BigOrZero(amount), -TokenDecimals)
}

// FormatTokenAmount formats a token amount with full precision, trimming trailing zeros.
// At least one fractional digit is kept ("1.0 GRT").
func FormatTokenAmount(amount *big.Int, symbol string) string {
	formatted := TokensToDecimal(amount).String()
	if !strings.Contains(formatted, ".") {
		formatted += ".0"
	}
	formatted = FormatAddCommas(formatted)
	if symbol != "" {
		return formatted + " " + symbol
	}
	return formatted
}

// FormatGRT formats a GRT amount with full precision.
func FormatGRT(amount *big.Int) string {
	return FormatTokenAmount(amount, "GRT")
}

// FormatGRTCompact formats a GRT amount in compact notation with two decimals (1.23M GRT).
func FormatGRTCompact(amount *big.Int) string {
	tokens := TokensToDecimal(amount)
	switch {
	case tokens.Abs().GreaterThanOrEqual(millionTokens):
		return tokens.Div(millionTokens).StringFixed(2) + "M GRT"
	case tokens.Abs().GreaterThanOrEqual(thousandTokens):
		return tokens.Div(thousandTokens).StringFixed(2) + "K GRT"
	default:
		return tokens.StringFixed(2) + " GRT"
	}
}

// FormatBigNumber formats an integer with thousands separators, well known max values are shown by name.
// With token set the value is formatted as GRT amount.
func FormatBigNumber(val *big.Int, token bool) string {
	val = BigOrZero(val)
	switch {
	case val.Cmp(MaxUint32) == 0:
		return "UINT32_MAX"
	case val.Cmp(MaxUint64) == 0:
		return "UINT64_MAX"
	case val.Cmp(MaxUint128) == 0:
		return "UINT128_MAX"
	case val.Cmp(MaxUint256) == 0:
		return "UINT256_MAX"
	}

	if token {
		return FormatGRT(val)
	}
	return FormatAddCommas(val.String())
}

// FormatPPM formats a parts-per-million value as integer percentage ("10% (100000 ppm)").
func FormatPPM(ppm *big.Int) string {
	ppm = BigOrZero(ppm)
	return fmt.Sprintf("%v%% (%v ppm)", new(big.Int).Quo(ppm, ppmPerPercent), ppm)
}

// FormatPPMRange formats an inclusive ppm range as percentages.
func FormatPPMRange(min, max *big.Int) string {
	return fmt.Sprintf("[%v%% - %v%%]", new(big.Int).Quo(BigOrZero(min), ppmPerPercent), new(big.Int).Quo(BigOrZero(max), ppmPerPercent))
}

// FormatDuration formats a number of seconds in whole hours below one day, in whole days above.
func FormatDuration(seconds *big.Int) string {
	seconds = BigOrZero(seconds)

	var count *big.Int
	var unit string
	if seconds.Cmp(secondsPerDay) < 0 {
		count = new(big.Int).Quo(seconds, secondsPerHour)
		unit = "hour"
	} else {
		count = new(big.Int).Quo(seconds, secondsPerDay)
		unit = "day"
	}

	if count.Cmp(big.NewInt(1)) != 0 {
		unit += "s"
	}
	return fmt.Sprintf("%v %v", count, unit)
}

// FormatDurationRange formats an inclusive range of seconds.
func FormatDurationRange(min, max *big.Int) string {
	return fmt.Sprintf("[%v - %v]", FormatDuration(min), FormatDuration(max))
}

// FormatRange formats an inclusive integer range, with token set both ends are formatted as GRT.
func FormatRange(min, max *big.Int, token bool) string {
	return fmt.Sprintf("[%v - %v]", FormatBigNumber(min, token), FormatBigNumber(max, token))
}
