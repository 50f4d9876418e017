package game

// EvaluateWinner decides the terminal state from the player set after all
// deaths for the cycle are applied. It returns WinnerNone while the game
// continues.
//
// Rules, in order: the company wins once no spy is left alive; the spies win
// once living spies reach parity with everyone else, unless a living
// consultant steals that win. The YESMAN roots for the spies but does not
// count toward parity.
func EvaluateWinner(players map[string]*Player) Winner {
	spies := 0
	others := 0
	consultantAlive := false

	for _, p := range players {
		if !p.IsAlive {
			continue
		}
		if p.Role.CountsAsSpy() {
			spies++
		} else {
			others++
		}
		if p.Role == RoleConsultant {
			consultantAlive = true
		}
	}

	if spies == 0 {
		return WinnerCompany
	}
	if spies >= others {
		if consultantAlive {
			return WinnerConsultant
		}
		return WinnerSpies
	}
	return WinnerNone
}
