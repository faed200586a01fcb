// Package reference holds the static roster and portfolio data used to
// enrich fallback agent prompts. The data is read once at startup and never
// mutated.
package reference

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed team.json
var defaultTeam []byte

//go:embed portfolio.json
var defaultPortfolio []byte

// Member is one person of a roster group.
type Member struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Image string `json:"image,omitempty"`
}

// Group is a team or department.
type Group struct {
	Group   string   `json:"group"`
	Members []Member `json:"members"`
}

// Project is one portfolio entry.
type Project struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url,omitempty"`
}

// Data is the read-only reference set.
type Data struct {
	Team      []Group
	Portfolio []Project
}

// Load reads the roster and portfolio files. Empty paths select the embedded data.
func Load(teamPath, portfolioPath string) (*Data, error) {
	team, err := read(teamPath, defaultTeam)
	if err != nil {
		return nil, fmt.Errorf("team data: %w", err)
	}
	portfolio, err := read(portfolioPath, defaultPortfolio)
	if err != nil {
		return nil, fmt.Errorf("portfolio data: %w", err)
	}

	d := &Data{}
	if err := json.Unmarshal(team, &d.Team); err != nil {
		return nil, fmt.Errorf("failed to decode team data: %w", err)
	}
	if err := json.Unmarshal(portfolio, &d.Portfolio); err != nil {
		return nil, fmt.Errorf("failed to decode portfolio data: %w", err)
	}
	return d, nil
}

// Default returns the embedded data set.
func Default() *Data {
	d, err := Load("", "")
	if err != nil {
		panic(err)
	}
	return d
}

func read(path string, fallback []byte) ([]byte, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
