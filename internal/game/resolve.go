package game

// Resolve scores a single round: every pair of players with committed
// choices plays out once, the winner of each pairing earning a point.
// Players without a choice never enter a pairing but still appear in the
// result with score 0. The accumulation is order-independent, so any two
// clients resolving the same snapshot write the same result.
func Resolve(players []Player) *RoundResult {
	scores := make(map[string]PlayerScore, len(players))
	for _, p := range players {
		scores[p.ID] = PlayerScore{Name: p.Name, Choice: p.Choice}
	}

	for i := 0; i < len(players); i++ {
		for j := i + 1; j < len(players); j++ {
			a, b := players[i], players[j]
			if !a.Choice.Valid() || !b.Choice.Valid() {
				continue
			}
			switch {
			case a.Choice.Beats(b.Choice):
				ps := scores[a.ID]
				ps.Score++
				scores[a.ID] = ps
			case b.Choice.Beats(a.Choice):
				ps := scores[b.ID]
				ps.Score++
				scores[b.ID] = ps
			}
		}
	}

	max := 0
	for _, ps := range scores {
		if ps.Score > max {
			max = ps.Score
		}
	}

	// Collect top scorers in join order so tied-name listings are stable.
	var top []string
	if max > 0 {
		for _, p := range players {
			if scores[p.ID].Score == max {
				top = append(top, p.Name)
			}
		}
	}

	var outcome Outcome
	switch {
	case max == 0:
		outcome = Outcome{Kind: OutcomeDraw}
	case len(top) == 1:
		outcome = Outcome{Kind: OutcomeWin, Names: top}
	default:
		outcome = Outcome{Kind: OutcomeTie, Names: top}
	}

	return &RoundResult{Scores: scores, Outcome: outcome}
}
