// Package text implements the deterministic UTF-8 normalization and
// tokenization that the shingle hasher builds on. The same normalized byte
// sequence must be produced for the same input on every platform, since
// shingle hashes are derived directly from it.
package text

import "unicode/utf8"

// MaxTokens bounds the number of token spans Tokenize will return for a
// single document; callers truncate rather than reject longer documents.
const MaxTokens = 1 << 16

// specialSpace reports whether cp is one of the Unicode space variants that
// normalize to ASCII space (NBSP, thin space, narrow no-break space, and the
// various general-punctuation spaces).
func isSpecialSpace(cp rune) bool {
	switch cp {
	case 0x00A0, 0x2001, 0x2002, 0x2003, 0x2004, 0x2005, 0x2006, 0x2007, 0x2009, 0x200A, 0x202F:
		return true
	}
	return false
}

// foldCase lowercases ASCII, basic Cyrillic, and the Kazakh/Turkish capitals
// the corpus is known to contain. It does not use unicode.ToLower: the
// source's case table is intentionally narrow, and widening it would change
// shingle hashes for scripts the corpus doesn't otherwise normalize.
func foldCase(cp rune) rune {
	switch {
	case cp >= 'A' && cp <= 'Z':
		return cp + 32
	case cp >= 0x0410 && cp <= 0x042F: // А..Я
		return cp + 0x20
	case cp == 0x0401: // Ё
		return 0x0451
	case cp == 0x0406: // І
		return 0x0456
	case cp == 0x04D8: // Ә
		return 0x04D9
	case cp == 0x0492: // Ғ
		return 0x0493
	case cp == 0x049A: // Қ
		return 0x049B
	case cp == 0x04A2: // Ң
		return 0x04A3
	case cp == 0x04E8: // Ө
		return 0x04E9
	case cp == 0x04B0: // Ұ
		return 0x04B1
	case cp == 0x04AE: // Ү
		return 0x04AF
	case cp == 0x04BA: // Һ
		return 0x04BB
	case cp == 0x00C7: // Ç
		return 0x00E7
	case cp == 0x00D6: // Ö
		return 0x00F6
	case cp == 0x00DC: // Ü
		return 0x00FC
	case cp == 0x011E: // Ğ
		return 0x011F
	case cp == 0x015E: // Ş
		return 0x015F
	case cp == 0x0130: // İ
		return 'i'
	}
	return cp
}

// foldEquivalents collapses code points that are distinct letters but are
// treated as the same shingle token: ё folds to е, and the Turkish dotless ı
// folds to ASCII i.
func foldEquivalents(cp rune) rune {
	switch cp {
	case 0x0451: // ё
		return 0x0435 // е
	case 0x0131: // ı
		return 'i'
	}
	return cp
}

func isCombiningMark(cp rune) bool {
	return cp >= 0x0300 && cp <= 0x036F
}

func isExtendedLatin(cp rune) bool {
	return cp >= 0x00C0 && cp <= 0x02AF
}

// isWordRune reports whether cp should pass through untouched: ASCII
// alphanumerics and underscore, plus basic Cyrillic. Extended Latin is
// handled separately by the caller (it is folded to space, overriding this
// check) to match the normalizer's observed behavior.
func isWordRune(cp rune) bool {
	switch {
	case cp == '_':
		return true
	case cp >= '0' && cp <= '9':
		return true
	case cp >= 'a' && cp <= 'z', cp >= 'A' && cp <= 'Z':
		return true
	case cp >= 0x00C0 && cp <= 0x02AF:
		return true
	case cp >= 0x0400 && cp <= 0x04FF:
		return true
	}
	return false
}

// Normalize maps arbitrary input bytes to a normalized UTF-8 buffer:
// malformed sequences become single spaces, case is folded for the scripts
// the corpus supports, combining marks and extended-Latin code points are
// dropped to space, non-word code points collapse to space, and runs of
// spaces collapse to one with the result trimmed.
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(src []byte) []byte {
	out := make([]byte, 0, len(src))
	prevSpace := true // treat start-of-buffer as if preceded by a space, to trim leading spaces

	appendSpace := func() {
		if !prevSpace {
			out = append(out, ' ')
			prevSpace = true
		}
	}

	for i := 0; i < len(src); {
		cp, size := utf8.DecodeRune(src[i:])
		if cp == utf8.RuneError && size <= 1 {
			// Malformed leading/continuation byte: emit a space, advance one byte.
			appendSpace()
			i++
			continue
		}
		i += size

		if isSpecialSpace(cp) {
			appendSpace()
			continue
		}

		cp = foldCase(cp)
		cp = foldEquivalents(cp)

		if isCombiningMark(cp) {
			continue
		}

		if isExtendedLatin(cp) {
			appendSpace()
			continue
		}

		if isWordRune(cp) {
			var buf [utf8.UTFMax]byte
			n := utf8.EncodeRune(buf[:], cp)
			out = append(out, buf[:n]...)
			prevSpace = false
			continue
		}

		appendSpace()
	}

	// Trim a single trailing space left by appendSpace (leading spaces never
	// get appended since prevSpace starts true).
	if n := len(out); n > 0 && out[n-1] == ' ' {
		out = out[:n-1]
	}
	return out
}
