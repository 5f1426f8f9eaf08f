// Configuration Specification and Management

// Package conf loads and serializes the server's configuration: a
// TOML file, with any CLI flags the caller resolves afterward taking
// precedence over individual fields.
package conf

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// Conf is the full set of tunables cmd/server needs to construct a
// listener and a game. Time limits are stored in whole seconds, like
// the teacher's GameConf.Timeout, rather than as a TOML-unfriendly
// time.Duration.
type Conf struct {
	Debug       bool   `toml:"debug"`
	Listen      string `toml:"listen"`
	MaxPlayers  uint   `toml:"max_players"`
	RaceLength  uint   `toml:"race_length"`
	AnswerTime  uint   `toml:"answer_time"`
	PrepareTime uint   `toml:"prepare_time"`
	OperandMin  int    `toml:"operand_min"`
	OperandMax  int    `toml:"operand_max"`
}

// Default returns the configuration used when no file is given and
// no flag overrides a field.
func Default() Conf {
	return Conf{
		Debug:       false,
		Listen:      "localhost:54321",
		MaxPlayers:  10,
		RaceLength:  10,
		AnswerTime:  30,
		PrepareTime: 10,
		OperandMin:  -10000,
		OperandMax:  10000,
	}
}

// Open reads name as a TOML file layered on top of Default, so a
// config file only has to mention the fields it overrides.
func Open(name string) (Conf, error) {
	conf := Default()

	file, err := os.Open(name)
	if err != nil {
		return conf, err
	}
	defer file.Close()

	_, err = toml.NewDecoder(file).Decode(&conf)
	return conf, err
}

// Dump serializes conf as TOML, for the -dump-config flag.
func (c Conf) Dump(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
