package normalize

import "regexp"

var (
	emailRe = regexp.MustCompile(`[\w.+-]+@[\w-]+(?:\.[\w-]+)+`)

	// Home directories on the three common platforms, user segment included.
	homeRe = regexp.MustCompile(`(?i)(?:/home/|/Users/|[A-Za-z]:\\Users\\)[^\s:'"]*`)

	winPathRe = regexp.MustCompile(`[A-Za-z]:\\[^\s:'"]+`)

	// Two or more slash-separated segments; catches absolute paths and the
	// tail of relative ones embedded in messages.
	unixPathRe = regexp.MustCompile(`/[\w.+~-]+(?:/[\w.+~-]+)+/?`)

	lineColRe = regexp.MustCompile(`(?i)\b(?:line|ln|col|column|row)[\s:=]*\d+`)

	hexRe = regexp.MustCompile(`\b0[xX][0-9a-fA-F]+\b`)
	intRe = regexp.MustCompile(`\d+`)

	wsRe = regexp.MustCompile(`\s+`)

	wordRe = regexp.MustCompile(`^[a-z0-9_.-]+$`)
)
