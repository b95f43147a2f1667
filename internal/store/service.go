package store

import (
	"context"
	"fmt"
	"time"

	"github.com/valpere/autotrad/internal/memory"
	"github.com/valpere/autotrad/internal/translator"
)

// levenshtein returns the edit distance between two strings (rune-aware).
// Uses a space-optimized two-row DP implementation.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1]
			} else {
				curr[j] = min(prev[j], prev[j-1], curr[j-1]) + 1
			}
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

// stringSimilarity returns a similarity score in [0, 1] (1 = identical).
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// FuzzyGetCachedTranslation returns the translation whose source text is most
// similar to key, provided the similarity reaches threshold (0–1). Pass
// threshold ≤ 0 to disable. UI strings are short; keys longer than 200
// runes are not fuzzy-matched.
func (s *Store) FuzzyGetCachedTranslation(ctx context.Context, tag, key string, threshold float64) (string, float64, bool, error) {
	if threshold <= 0 {
		return "", 0, false, nil
	}

	normalized := memory.Normalize(key)
	const maxFuzzyRunes = 200
	if len([]rune(normalized)) > maxFuzzyRunes {
		return "", 0, false, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_text, final_text FROM translation_memory WHERE lang = ? AND NOT invalidated`,
		memory.Language(tag))
	if err != nil {
		return "", 0, false, err
	}
	defer rows.Close()

	var bestFinal string
	bestScore := 0.0

	for rows.Next() {
		var srcText, finalText string
		if err := rows.Scan(&srcText, &finalText); err != nil {
			return "", 0, false, err
		}

		// the length difference alone may rule the row out
		ls, lr := len([]rune(normalized)), len([]rune(srcText))
		maxL := max(ls, lr)
		diff := ls - lr
		if diff < 0 {
			diff = -diff
		}
		if maxL > 0 && 1.0-float64(diff)/float64(maxL) < threshold {
			continue
		}

		score := stringSimilarity(normalized, srcText)
		if score >= threshold && score > bestScore {
			bestScore = score
			bestFinal = finalText
		}
	}
	if err := rows.Err(); err != nil {
		return "", 0, false, err
	}

	if bestFinal != "" {
		return bestFinal, bestScore, true, nil
	}
	return "", 0, false, nil
}

// MemoryService answers from the persisted translation memory: exact match
// first, then the closest fuzzy match above the threshold. Fuzzy answers
// still pass through the quality gate like any provider output.
type MemoryService struct {
	store     *Store
	threshold float64
}

func (s *Store) Service(fuzzyThreshold float64) *MemoryService {
	return &MemoryService{store: s, threshold: fuzzyThreshold}
}

func (m *MemoryService) Name() string {
	return "memory"
}

func (m *MemoryService) Translate(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	result := &translator.ServiceResult{ServiceName: m.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	text, ok, err := m.store.GetCachedTranslation(ctx, req.TargetLang, req.Text)
	if err != nil {
		result.Error = fmt.Sprintf("lookup failed: %v", err)
		return result, err
	}
	if ok {
		result.TranslatedText = text
		result.Metadata = map[string]string{"match": "exact"}
		return result, nil
	}

	text, score, ok, err := m.store.FuzzyGetCachedTranslation(ctx, req.TargetLang, req.Text, m.threshold)
	if err != nil {
		result.Error = fmt.Sprintf("fuzzy lookup failed: %v", err)
		return result, err
	}
	if !ok {
		return nil, nil
	}
	result.TranslatedText = text
	result.Metadata = map[string]string{"match": fmt.Sprintf("%.2f", score)}
	return result, nil
}

func (m *MemoryService) IsAvailable(ctx context.Context) error {
	return m.store.db.PingContext(ctx)
}
