// Package seed provides the demo game handed out by the sample-game route.
package seed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed sample.yaml
var sampleYAML []byte

type Move struct {
	Number int    `yaml:"number"`
	Color  string `yaml:"color"`
	SAN    string `yaml:"san"`
	FEN    string `yaml:"fen"`
}

type Game struct {
	Title       string `yaml:"title"`
	Opponent    string `yaml:"opponent"`
	UserColor   string `yaml:"userColor"`
	StartingFEN string `yaml:"startingFen"`
	Result      string `yaml:"result"`
	Status      string `yaml:"status"`
	Moves       []Move `yaml:"moves"`
}

// Sample decodes the embedded sample game
func Sample() (*Game, error) {
	return Parse(sampleYAML)
}

func Parse(data []byte) (*Game, error) {
	var g Game
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode seed game: %w", err)
	}
	if len(g.Moves) == 0 {
		return nil, fmt.Errorf("seed game %q has no moves", g.Title)
	}
	return &g, nil
}

// NumberedTitle is the title given once the game has an ID
func (g *Game) NumberedTitle(id int64) string {
	return fmt.Sprintf("%s #%d", g.Title, id)
}
