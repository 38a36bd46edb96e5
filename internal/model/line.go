package model

// Batting holds additive hitting totals.
type Batting struct {
	Games   int `json:"g"`
	PA      int `json:"pa"`
	AB      int `json:"ab"`
	H       int `json:"h"`
	Doubles int `json:"doubles"`
	Triples int `json:"triples"`
	HR      int `json:"hr"`
	RBI     int `json:"rbi"`
	R       int `json:"r"`
	BB      int `json:"bb"`
	K       int `json:"k"`
	SB      int `json:"sb"`
	HBP     int `json:"hbp"`
	SF      int `json:"sf"`
}

// Add returns the field-wise sum of b and o.
func (b Batting) Add(o Batting) Batting {
	return Batting{
		Games:   b.Games + o.Games,
		PA:      b.PA + o.PA,
		AB:      b.AB + o.AB,
		H:       b.H + o.H,
		Doubles: b.Doubles + o.Doubles,
		Triples: b.Triples + o.Triples,
		HR:      b.HR + o.HR,
		RBI:     b.RBI + o.RBI,
		R:       b.R + o.R,
		BB:      b.BB + o.BB,
		K:       b.K + o.K,
		SB:      b.SB + o.SB,
		HBP:     b.HBP + o.HBP,
		SF:      b.SF + o.SF,
	}
}

// Sub returns the field-wise difference b - o. Results are not clamped.
func (b Batting) Sub(o Batting) Batting {
	return Batting{
		Games:   b.Games - o.Games,
		PA:      b.PA - o.PA,
		AB:      b.AB - o.AB,
		H:       b.H - o.H,
		Doubles: b.Doubles - o.Doubles,
		Triples: b.Triples - o.Triples,
		HR:      b.HR - o.HR,
		RBI:     b.RBI - o.RBI,
		R:       b.R - o.R,
		BB:      b.BB - o.BB,
		K:       b.K - o.K,
		SB:      b.SB - o.SB,
		HBP:     b.HBP - o.HBP,
		SF:      b.SF - o.SF,
	}
}

// WithDerivedPA fills PA from its components when the source did not report it.
func (b Batting) WithDerivedPA() Batting {
	if b.PA == 0 {
		b.PA = b.AB + b.BB + b.HBP + b.SF
	}
	return b
}

// Pitching holds additive pitching totals. Innings are tracked as outs.
type Pitching struct {
	Games int `json:"g"`
	Outs  int `json:"outs"`
	H     int `json:"h"`
	R     int `json:"r"`
	ER    int `json:"er"`
	BB    int `json:"bb"`
	K     int `json:"k"`
	HR    int `json:"hr"`
	W     int `json:"w"`
	L     int `json:"l"`
	SV    int `json:"sv"`
}

// Add returns the field-wise sum of p and o.
func (p Pitching) Add(o Pitching) Pitching {
	return Pitching{
		Games: p.Games + o.Games,
		Outs:  p.Outs + o.Outs,
		H:     p.H + o.H,
		R:     p.R + o.R,
		ER:    p.ER + o.ER,
		BB:    p.BB + o.BB,
		K:     p.K + o.K,
		HR:    p.HR + o.HR,
		W:     p.W + o.W,
		L:     p.L + o.L,
		SV:    p.SV + o.SV,
	}
}

// Sub returns the field-wise difference p - o. Results are not clamped.
func (p Pitching) Sub(o Pitching) Pitching {
	return Pitching{
		Games: p.Games - o.Games,
		Outs:  p.Outs - o.Outs,
		H:     p.H - o.H,
		R:     p.R - o.R,
		ER:    p.ER - o.ER,
		BB:    p.BB - o.BB,
		K:     p.K - o.K,
		HR:    p.HR - o.HR,
		W:     p.W - o.W,
		L:     p.L - o.L,
		SV:    p.SV - o.SV,
	}
}

// Line is a player's counting stats for some span: a game, a window, or a season to date.
type Line struct {
	Batting  Batting  `json:"batting"`
	Pitching Pitching `json:"pitching"`
}

// Add returns the sum of both lines.
func (l Line) Add(o Line) Line {
	return Line{Batting: l.Batting.Add(o.Batting), Pitching: l.Pitching.Add(o.Pitching)}
}

// Sub returns l - o for every counting field.
func (l Line) Sub(o Line) Line {
	return Line{Batting: l.Batting.Sub(o.Batting), Pitching: l.Pitching.Sub(o.Pitching)}
}

// Games returns the games played relevant to the given role.
func (l Line) Games(role Role) int {
	if role.Pitches() {
		return l.Pitching.Games
	}
	return l.Batting.Games
}
