package search

// TokenMatch is one query token's best match within a single record: the
// index token it matched, the identity of the match, and that token's
// weight in the record.
type TokenMatch struct {
	Token    string
	Identity float64
	Weight   float64
}

// better reports whether m should replace other as a record's best match,
// comparing identity first and weight second.
func (m TokenMatch) better(other TokenMatch) bool {
	if m.Identity != other.Identity {
		return m.Identity > other.Identity
	}
	return m.Weight > other.Weight
}

// matchToken finds the records whose indexed tokens match the query token,
// exactly or within its edit budget, and returns the best match per record.
// The eligibility predicate filters records before scoring; it never alters
// weights.
func (s *Searcher) matchToken(qt string, exact bool, eligible func(id string) bool) map[string]TokenMatch {
	result := make(map[string]TokenMatch)

	take := func(token string, identity float64) {
		for _, p := range s.ix.Postings[token] {
			if !eligible(p.RecordID) {
				continue
			}
			m := TokenMatch{Token: token, Identity: identity, Weight: p.Weight}
			if prev, ok := result[p.RecordID]; !ok || m.better(prev) {
				result[p.RecordID] = m
			}
		}
	}

	qlen := len([]rune(qt))
	budget := 0
	if !exact {
		budget = editBudget(qlen)
	}
	if budget == 0 {
		if _, ok := s.ix.Postings[qt]; ok {
			take(qt, 1)
		}
		return result
	}

	// Candidates are pruned by token length before any DP: an edit
	// distance within budget bounds the length difference by budget.
	for l := qlen - budget; l <= qlen+budget; l++ {
		for _, token := range s.vocabByLen[l] {
			d := levenshteinBounded(qt, token, budget)
			if d > budget {
				continue
			}
			longer := qlen
			if tl := len([]rune(token)); tl > longer {
				longer = tl
			}
			take(token, float64(longer-d)/float64(longer))
		}
	}
	return result
}
