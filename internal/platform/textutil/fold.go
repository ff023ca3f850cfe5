package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold は検索キー用の正規化
// アクセント除去 → 大文字小文字の畳み込み → 空白の詰め。Caser は共有できないので毎回作る
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(out)), " ")
}

// SearchKey は複数フィールドを連結して畳み込む（例: title + author）
func SearchKey(parts ...string) string {
	return Fold(strings.Join(parts, " "))
}

// LikePattern は LIKE 用。% と _ はエスケープする
func LikePattern(q string) string {
	q = Fold(q)
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
