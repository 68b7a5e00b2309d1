// Package estimate maps free-text task descriptions to a difficulty score
// and karma reward. It is a pure strategy: it reads the text and a
// due-today flag, nothing else, so it can be swapped for a smarter
// classifier without touching the mission engine.
package estimate

import (
	"regexp"
	"strconv"
	"strings"
)

// Estimate is the scoring result for one task description.
type Estimate struct {
	Category     string `json:"category"`
	Difficulty   int    `json:"difficulty"`
	Label        string `json:"label"`
	BaseReward   int    `json:"base_reward"`
	UrgencyBonus int    `json:"urgency_bonus"`
	TotalReward  int    `json:"total_reward"`
}

// Validity is the gate result for a raw submission. The estimator only
// reports; the caller decides what penalty to apply.
type Validity struct {
	Valid     bool   `json:"valid"`
	Violation string `json:"violation,omitempty"`
}

// Estimator holds the tunables. Zero value is unusable; use New.
type Estimator struct {
	UrgencyBonus    int
	FuzzyThreshold  float64
	LengthBumpChars int
	MinLengthRunes  int
}

func New() Estimator {
	return Estimator{
		UrgencyBonus:    1,
		FuzzyThreshold:  0.78,
		LengthBumpChars: 120,
		MinLengthRunes:  3,
	}
}

// category tables. Order matters: the most complex classes of work are
// checked first, so "свести и выложить трек" scores as mixing, not
// publishing.
type category struct {
	name       string
	difficulty int
	variants   []string
}

var (
	catFullTrack = category{"full_track", 5, []string{
		"полностью сделать трек", "бит + запись + сведение", "с нуля трек", "фулл трек", "full track",
	}}
	catFilming = category{"filming", 3, []string{
		"снимать", "съемка", "снять материал", "наснимай", "наотснимай", "оператор",
	}}
	catShootLocation = category{"filming", 3, []string{
		"отснять локацию", "снять локацию", "локация", "выезд на локацию", "локации",
	}}
	catOnCamera = category{"on_camera", 2, []string{
		"сняться", "снимись", "быть в кадре", "участвовать в съемке",
	}}
	catEditing = category{"editing", 3, []string{
		"смонтировать", "монтаж", "порезать", "нарезка", "склейка", "видео монтаж",
	}}
	catColor = category{"color", 3, []string{
		"цветокор", "color", "color grading", "grading", "покрас", "коррекция цвета",
	}}
	catScript = category{"script", 3, []string{
		"сценарий", "техзадание", "тз", "раскадровка", "сториборд", "treatment",
	}}
	catGear = category{"gear", 2, []string{
		"оборудование", "освет", "свет", "микрофон", "рекордер", "штатив", "стедикам", "гимбал", "аренда техники", "подготовить студию",
	}}
	catMix = category{"mix", 4, []string{
		"свести трек", "сведение", "сведение трека", "микс", "миксдаун", "mix", "mixdown", "мастер", "мастеринг", "master", "mastering",
	}}
	catRecord = category{"record", 4, []string{
		"записать трек", "записать вокал", "записать куплет", "запись трека", "record", "вокал записать",
	}}
	catCover = category{"cover", 2, []string{
		"обложк", "cover", "артворк", "artwork", "обложка к треку", "дизайн обложки",
	}}
	catBeat = category{"beat", 2, []string{
		"сделать бит", "бит сделать", "биток", "beat", "инструментал",
	}}
	catPublish = category{"publish", 1, []string{
		"опубликов", "вылож", "залей", "загруз", "на площадк", "spotify", "apple music", "yandex music",
	}}
	catHousehold = category{"household", 1, []string{
		"вынести мусор", "мусор", "убор", "убрать", "уборка", "помыть", "помыть пол", "подмести",
		"пропылесосить", "посуду", "помыть посуду", "окна", "купить продукты", "закупиться",
		"магазин", "полить цветы", "цветы", "покормить", "корм", "собаку", "кошку", "рыбок",
	}}
)

var snippetWords = []string{"сниппет", "снип", "тизер", "shorts", "шортс", "reels", "рилс", "шорт"}

var numberWords = map[string]int{
	"два": 2, "две": 2, "три": 3, "четыре": 4, "пять": 5,
	"шесть": 6, "семь": 7, "восемь": 8, "девять": 9, "десять": 10,
}

var difficultyLabels = map[int]string{
	1: "Лёгкая",
	2: "Средняя",
	3: "Выше средней",
	4: "Тяжёлая",
	5: "Хардкор",
}

// Label returns the human label for a 1..5 difficulty.
func Label(difficulty int) string {
	return difficultyLabels[clamp(difficulty, 1, 5)]
}

// Check is the validity gate. It never applies penalties itself.
func (e Estimator) Check(text string) Validity {
	t := strings.TrimSpace(text)
	if t == "" {
		return Validity{Valid: false, Violation: "empty text"}
	}
	if len([]rune(t)) < e.MinLengthRunes {
		return Validity{Valid: false, Violation: "text too short"}
	}
	return Validity{Valid: true}
}

// Estimate classifies the text and produces the reward. Pure: no IO, no
// clock, no store access.
func (e Estimator) Estimate(text string, dueToday bool) Estimate {
	t := normalize(text)
	cat, diff := e.classify(t)

	if diff != clamp(diff, 1, 5) {
		diff = clamp(diff, 1, 5)
	}
	bonus := 0
	if dueToday {
		bonus = e.UrgencyBonus
	}
	return Estimate{
		Category:     cat,
		Difficulty:   diff,
		Label:        Label(diff),
		BaseReward:   diff,
		UrgencyBonus: bonus,
		TotalReward:  diff + bonus,
	}
}

func (e Estimator) classify(t string) (string, int) {
	if e.fuzzyContains(t, catFullTrack.variants) {
		return catFullTrack.name, catFullTrack.difficulty
	}

	// Explicit snippet counts trump the category tables.
	if n := countSnippets(t); n > 0 {
		return "snippet", clamp(n, 1, 5)
	}

	if e.fuzzyContains(t, catShootLocation.variants) && !strings.Contains(t, "снятс") {
		return catShootLocation.name, e.withLengthBump(t, catShootLocation.difficulty)
	}
	if e.fuzzyContains(t, catOnCamera.variants) && strings.Contains(t, "локац") {
		return catOnCamera.name, catOnCamera.difficulty
	}
	if e.fuzzyContains(t, catFilming.variants) && !strings.Contains(t, "снятс") {
		return catFilming.name, e.withLengthBump(t, catFilming.difficulty)
	}
	for _, c := range []category{catEditing, catColor, catScript} {
		if e.fuzzyContains(t, c.variants) {
			return c.name, e.withLengthBump(t, c.difficulty)
		}
	}
	if e.fuzzyContains(t, catGear.variants) {
		if len([]rune(t)) > 60 {
			return catGear.name, 3
		}
		return catGear.name, 2
	}
	for _, c := range []category{catMix, catRecord, catCover, catPublish, catHousehold, catBeat} {
		if e.fuzzyContains(t, c.variants) {
			return c.name, e.withLengthBump(t, c.difficulty)
		}
	}

	// No category matched: lowest difficulty, with modest bumps for
	// dev-flavored keywords and long descriptions.
	base := 1
	for _, kw := range []string{"интеграци", "аналит", "скрипт", "бот", "api", "pipeline"} {
		if strings.Contains(t, kw) {
			base++
			break
		}
	}
	return catHousehold.name, e.withLengthBump(t, base)
}

func (e Estimator) withLengthBump(t string, diff int) int {
	if len([]rune(t)) > e.LengthBumpChars {
		diff++
	}
	return clamp(diff, 1, 5)
}

// IsHousehold reports whether the text reads as a household chore; the
// decline-penalty policy treats those more harshly.
func IsHousehold(text string) bool {
	t := normalize(text)
	for _, k := range catHousehold.variants {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

var (
	tokenRe        = regexp.MustCompile(`[a-zа-я0-9]+`)
	snippetCountRe = regexp.MustCompile(`(\d{1,2})\s*(сниппет\w*|снип\w*|тизер\w*|шортс?\w*|shorts?|reels?)`)
)

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "ё", "е")
	s = strings.ReplaceAll(s, "й", "и")
	return s
}

func tokenize(s string) []string {
	return tokenRe.FindAllString(normalize(s), -1)
}

func countSnippets(t string) int {
	n := 0
	for _, m := range snippetCountRe.FindAllStringSubmatch(t, -1) {
		if v, err := strconv.Atoi(m[1]); err == nil && v > n {
			n = v
		}
	}
	toks := tokenize(t)
	for i := 0; i+1 < len(toks); i++ {
		v, ok := numberWords[toks[i]]
		if !ok || v <= n {
			continue
		}
		for _, w := range snippetWords {
			if strings.HasPrefix(toks[i+1], strings.TrimSuffix(w, "s")) || strings.HasPrefix(toks[i+1], w) {
				n = v
				break
			}
		}
	}
	if n == 0 {
		occ := 0
		for _, w := range snippetWords {
			occ += strings.Count(t, w)
		}
		if occ > 0 {
			n = clamp(occ, 1, 5)
		}
	}
	return n
}

// fuzzyContains tries an exact substring match first, then compares sliding
// 1–4 token windows against each variant with a similarity ratio.
func (e Estimator) fuzzyContains(text string, variants []string) bool {
	toks := tokenize(text)
	if len(toks) == 0 {
		return false
	}
	joined := strings.Join(toks, " ")
	var windows []string
	for n := 1; n <= 4; n++ {
		for i := 0; i+n <= len(toks); i++ {
			windows = append(windows, strings.Join(toks[i:i+n], " "))
		}
	}
	for _, v := range variants {
		vNorm := strings.Join(tokenize(v), " ")
		if vNorm == "" {
			continue
		}
		if strings.Contains(joined, vNorm) {
			return true
		}
		for _, w := range windows {
			if similarity(w, vNorm) >= e.FuzzyThreshold {
				return true
			}
		}
	}
	return false
}

// similarity is the classic matching-blocks ratio: twice the total length of
// the common blocks over the combined length of both strings.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	matched := matchingBlocks(ra, rb)
	return 2 * float64(matched) / float64(len(ra)+len(rb))
}

// matchingBlocks sums the lengths of recursively-found longest common
// substrings, left and right of each match.
func matchingBlocks(a, b []rune) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingBlocks(a[:ai], b[:bi])
	total += matchingBlocks(a[ai+size:], b[bi+size:])
	return total
}

func longestCommonSubstring(a, b []rune) (ai, bi, size int) {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai = i - size
					bi = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return ai, bi, size
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
