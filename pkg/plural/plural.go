// Package plural selects Russian word forms for numerals.
// Russian nouns inflect by the last digit of the count ("1 балл",
// "2 балла", "5 баллов"), with the teens (11-14) always taking the
// genitive plural. No external dependencies - uses only standard library.
package plural

import "fmt"

// Forms holds the three Russian word forms:
// singular ("балл"), paucal ("балла"), plural ("баллов").
type Forms struct {
	One  string
	Few  string
	Many string
}

// WordForms for common agent vocabulary.
var (
	Points  = Forms{One: "балл", Few: "балла", Many: "баллов"}
	Lessons = Forms{One: "урок", Few: "урока", Many: "уроков"}
	Courses = Forms{One: "курс", Few: "курса", Many: "курсов"}
)

// Select returns the form matching the count.
// Rules: 11-14 take Many; last digit 1 takes One; last digit 2-4
// takes Few; everything else takes Many. Negative counts are treated
// by absolute value.
func Select(n int, f Forms) string {
	if n < 0 {
		n = -n
	}

	switch {
	case n%100 >= 11 && n%100 <= 14:
		return f.Many
	case n%10 == 1:
		return f.One
	case n%10 >= 2 && n%10 <= 4:
		return f.Few
	default:
		return f.Many
	}
}

// Format returns the count followed by the matching form, e.g. "5 баллов".
func Format(n int, f Forms) string {
	return fmt.Sprintf("%d %s", n, Select(n, f))
}
