package game

// The resolver is pure: it reads a snapshot and returns a description of the
// changes. The store may re-run a conflicted commit, so resolution must be
// deterministic for a given snapshot.

// TallyVotes counts vote targets and returns the strict-majority-max target.
// If two or more targets share the maximum count the vote is tied and no one
// is executed; ties never break randomly.
func TallyVotes(votes map[string]string) (executedID string, tied bool) {
	if len(votes) == 0 {
		return "", false
	}

	tallies := make(map[string]int, len(votes))
	for _, targetID := range votes {
		tallies[targetID]++
	}

	max := 0
	atMax := 0
	for targetID, count := range tallies {
		switch {
		case count > max:
			max = count
			atMax = 1
			executedID = targetID
		case count == max:
			atMax++
		}
	}
	if atMax > 1 {
		return "", true
	}
	return executedID, false
}

// NightResult describes the outcome of one night's actions.
type NightResult struct {
	Deaths []string
	Logs   []string
}

// ResolveNight resolves the recorded night actions into deaths and result
// log lines. For each ability the authoritative action is the last one
// submitted by a living holder of that ability.
//
// The attack fails when the target is guarded or is the consultant; the HR
// investigation kills the consultant regardless of guard or attack.
func ResolveNight(room *Room) NightResult {
	attackTarget := lastActionByAbility(room, AbilityAttack)
	guardTarget := lastActionByAbility(room, AbilityGuard)
	divineTarget := lastActionByAbility(room, AbilityDivine)

	var result NightResult
	dead := map[string]bool{}

	if attackTarget != "" {
		target := room.Player(attackTarget)
		guarded := attackTarget == guardTarget
		if target != nil && !guarded && !target.Role.ImmuneToAttack() {
			dead[attackTarget] = true
			result.Deaths = append(result.Deaths, attackTarget)
			result.Logs = append(result.Logs, "Someone was found fired (attacked) in the morning.")
		} else {
			result.Logs = append(result.Logs, "Peaceful night. No one was fired.")
		}
	}

	if divineTarget != "" {
		target := room.Player(divineTarget)
		if target != nil && target.Role.DiesWhenDivined() && !dead[divineTarget] {
			result.Deaths = append(result.Deaths, divineTarget)
			result.Logs = append(result.Logs, target.Name+" (Consultant) was exposed and fired.")
		}
	}

	return result
}

// lastActionByAbility returns the target of the most recently submitted
// action whose actor is a living holder of the given ability, or "" if no
// such action was recorded.
func lastActionByAbility(room *Room, ability Ability) string {
	for i := len(room.ActionOrder) - 1; i >= 0; i-- {
		actorID := room.ActionOrder[i]
		actor := room.Player(actorID)
		if actor == nil || !actor.IsAlive || actor.Role.Ability() != ability {
			continue
		}
		if target, ok := room.Actions[actorID]; ok {
			return target
		}
	}
	return ""
}
