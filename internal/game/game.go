// Package game implements the Codenames board and turn rules as pure
// value transformations. A Game is a value; every transition returns
// a new Game (or, for in-place callers such as the store, mutates a
// copy the caller owns). The only impurity is random board layout,
// and that is always driven by an explicit *rand.Rand so tests are
// reproducible.
package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
)

// Team is one of the two competing sides.
type Team string

const (
	TeamRed  Team = "RED"
	TeamBlue Team = "BLUE"
)

// Opposite returns the other team.
func (t Team) Opposite() Team {
	if t == TeamRed {
		return TeamBlue
	}
	return TeamRed
}

// CardType is the hidden identity of a board card.
type CardType string

const (
	CardRed       CardType = "RED"
	CardBlue      CardType = "BLUE"
	CardBystander CardType = "BYSTANDER"
	CardAssassin  CardType = "ASSASSIN"
)

func cardTypeForTeam(t Team) CardType {
	if t == TeamBlue {
		return CardBlue
	}
	return CardRed
}

// Coord is a zero-based (row, col) position on the board, 0 <= row,col < 5.
// It is wire-encoded as a two-element [row, col] array, per the wire
// protocol's `coord: [row, col]` shape rather than a {row,col} object.
type Coord struct {
	Row int
	Col int
}

func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Row, c.Col})
}

func (c *Coord) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("coord: %w", err)
	}
	c.Row, c.Col = pair[0], pair[1]
	return nil
}

const BoardSize = 5

// Card is one cell of the board.
type Card struct {
	Word    string   `json:"word"`
	Kind    CardType `json:"cardType"`
	Flipped bool     `json:"flipped"`
	Coord   Coord    `json:"coord"`
}

// Board is the fixed 5x5 grid of cards.
type Board [BoardSize][BoardSize]Card

// Status is either in progress or over with a recorded winner.
type Status struct {
	InProgress bool
	Winner     Team // only meaningful when !InProgress
}

// Remaining tracks how many unflipped team cards are left per side.
type Remaining struct {
	Blue uint8
	Red  uint8
}

// Game is the full authoritative state of one round.
type Game struct {
	Board        Board
	StartingTeam Team
	TurnTeam     Team
	Remaining    Remaining
	Status       Status
}

// wireGame is the on-the-wire shape for Game: remaining counters as a
// [blue, red] pair and gameStatus as either the string "IN_PROGRESS"
// or {"OVER": {"winner": "RED"|"BLUE"}}.
type wireGame struct {
	StartingTeam   Team          `json:"startingTeam"`
	TurnTeam       Team          `json:"turnTeam"`
	Board          Board         `json:"board"`
	RemainingCards [2]uint8      `json:"remainingCards"`
	GameStatus     json.RawMessage `json:"gameStatus"`
}

type overStatus struct {
	Over struct {
		Winner Team `json:"winner"`
	} `json:"OVER"`
}

func (g Game) MarshalJSON() ([]byte, error) {
	var statusJSON json.RawMessage
	if g.Status.InProgress {
		statusJSON = json.RawMessage(`"IN_PROGRESS"`)
	} else {
		var over overStatus
		over.Over.Winner = g.Status.Winner
		b, err := json.Marshal(over)
		if err != nil {
			return nil, err
		}
		statusJSON = b
	}

	return json.Marshal(wireGame{
		StartingTeam:   g.StartingTeam,
		TurnTeam:       g.TurnTeam,
		Board:          g.Board,
		RemainingCards: [2]uint8{g.Remaining.Blue, g.Remaining.Red},
		GameStatus:     statusJSON,
	})
}

func (g *Game) UnmarshalJSON(data []byte) error {
	var w wireGame
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	g.StartingTeam = w.StartingTeam
	g.TurnTeam = w.TurnTeam
	g.Board = w.Board
	g.Remaining = Remaining{Blue: w.RemainingCards[0], Red: w.RemainingCards[1]}

	var asString string
	if err := json.Unmarshal(w.GameStatus, &asString); err == nil && asString == "IN_PROGRESS" {
		g.Status = Status{InProgress: true}
		return nil
	}

	var over overStatus
	if err := json.Unmarshal(w.GameStatus, &over); err != nil {
		return fmt.Errorf("gameStatus: %w", err)
	}
	g.Status = Status{InProgress: false, Winner: over.Over.Winner}
	return nil
}

var (
	// ErrGameOver is returned by FlipCard when the game has already ended.
	ErrGameOver = errors.New("game is over")
	// ErrOutOfBounds is returned for a coordinate outside the board.
	ErrOutOfBounds = errors.New("coordinate out of bounds")
	// ErrAlreadyFlipped is returned for a card that was already revealed.
	ErrAlreadyFlipped = errors.New("card already flipped")
	// ErrEmptyWordSource is returned by New when given fewer than 1 word to sample from.
	ErrEmptyWordSource = errors.New("word source is empty")
)

// New builds a freshly dealt Game for the given starting team, sampling
// board words with replacement from words. Board composition is exactly
// 9 of the starting team's color, 8 of the opposite, 1 assassin, 7
// bystanders, placed by repeated uniform-random rejection sampling, the
// same algorithm the original Rust Game::create_board uses.
func New(startingTeam Team, words []string, rng *rand.Rand) (Game, error) {
	if len(words) == 0 {
		return Game{}, ErrEmptyWordSource
	}

	var board Board
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			board[r][c] = Card{
				Word: words[rng.Intn(len(words))],
				Kind: CardBystander,
				Coord: Coord{Row: r, Col: c},
			}
		}
	}

	fillCard(&board, cardTypeForTeam(startingTeam), rng)
	for i := 0; i < 8; i++ {
		fillCard(&board, cardTypeForTeam(startingTeam), rng)
		fillCard(&board, cardTypeForTeam(startingTeam.Opposite()), rng)
	}
	fillCard(&board, CardAssassin, rng)

	remaining := Remaining{Blue: 8, Red: 8}
	if startingTeam == TeamBlue {
		remaining.Blue = 9
	} else {
		remaining.Red = 9
	}

	return Game{
		Board:        board,
		StartingTeam: startingTeam,
		TurnTeam:     startingTeam,
		Remaining:    remaining,
		Status:       Status{InProgress: true},
	}, nil
}

// fillCard repeatedly picks a uniform random cell and converts it to
// kind if it is still a BYSTANDER, skipping otherwise. This matches
// the rejection-sampling approach of the original Rust fill_card.
func fillCard(board *Board, kind CardType, rng *rand.Rand) {
	for {
		r, c := rng.Intn(BoardSize), rng.Intn(BoardSize)
		if board[r][c].Kind == CardBystander {
			board[r][c].Kind = kind
			return
		}
	}
}

// FlipCard reveals the card at coord and returns the resulting game.
// Preconditions: game.Status.InProgress, 0<=row,col<5, card not yet
// flipped. Turn continuation: the turn stays with turn_team if the
// flipped card matches turn_team's color; otherwise it passes. End
// conditions are checked in order: assassin flip ends the game for
// the team that was NOT on turn when the assassin was flipped; a
// team's remaining count hitting zero ends the game for that team.
func FlipCard(g Game, coord Coord) (Game, error) {
	if !g.Status.InProgress {
		return g, ErrGameOver
	}
	if coord.Row < 0 || coord.Row >= BoardSize || coord.Col < 0 || coord.Col >= BoardSize {
		return g, ErrOutOfBounds
	}
	card := &g.Board[coord.Row][coord.Col]
	if card.Flipped {
		return g, ErrAlreadyFlipped
	}

	turnBeforeFlip := g.TurnTeam
	card.Flipped = true

	switch card.Kind {
	case CardBlue:
		g.Remaining.Blue--
	case CardRed:
		g.Remaining.Red--
	}

	matchesTurn := (card.Kind == CardBlue && turnBeforeFlip == TeamBlue) ||
		(card.Kind == CardRed && turnBeforeFlip == TeamRed)
	if !matchesTurn {
		g.TurnTeam = turnBeforeFlip.Opposite()
	}

	switch {
	case card.Kind == CardAssassin:
		g.Status = Status{InProgress: false, Winner: turnBeforeFlip.Opposite()}
	case g.Remaining.Blue == 0:
		g.Status = Status{InProgress: false, Winner: TeamBlue}
	case g.Remaining.Red == 0:
		g.Status = Status{InProgress: false, Winner: TeamRed}
	}

	return g, nil
}

// NextTurn passes the turn to the opposite team; a no-op once the game
// is over.
func NextTurn(g Game) Game {
	if !g.Status.InProgress {
		return g
	}
	g.TurnTeam = g.TurnTeam.Opposite()
	return g
}

// NewFromCurrent starts a fresh round whose starting team is the
// opposite of the current round's starting team, carrying nothing
// else forward (sessions/spymaster flags live outside Game).
func NewFromCurrent(g Game, words []string, rng *rand.Rand) (Game, error) {
	return New(g.StartingTeam.Opposite(), words, rng)
}
