package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type testConfig struct {
	Name    string   `yaml:"name" validate:"nonzero"`
	Workers int      `yaml:"workers" validate:"min=1"`
	Hosts   []string `yaml:"hosts"`
}

type ParseTestSuite struct {
	suite.Suite
	dir string
}

func (s *ParseTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *ParseTestSuite) writeFile(name, contents string) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(contents), 0644))
	return path
}

func (s *ParseTestSuite) TestMergeInOrder() {
	base := s.writeFile("base.yaml", "name: base\nworkers: 2\nhosts: [a, b]\n")
	override := s.writeFile("override.yaml", "workers: 4\n")

	var cfg testConfig
	s.Require().NoError(Parse(&cfg, base, override))
	s.Equal("base", cfg.Name)
	s.Equal(4, cfg.Workers)
	s.Equal([]string{"a", "b"}, cfg.Hosts)
}

func (s *ParseTestSuite) TestValidationFailure() {
	path := s.writeFile("bad.yaml", "name: x\nworkers: 0\n")

	var cfg testConfig
	err := Parse(&cfg, path)
	s.Require().Error(err)
	verr, ok := err.(ValidationError)
	s.Require().True(ok)
	s.Error(verr.ErrForField("Workers"))
	s.NoError(verr.ErrForField("Name"))
	s.Nil(verr.ErrForField("Hosts"))
	s.Equal([]string{"Workers"}, verr.Fields())
}

func (s *ParseTestSuite) TestValidationMessage() {
	path := s.writeFile("bad.yaml", "workers: 0\n")

	var cfg testConfig
	err := Parse(&cfg, path)
	s.Require().Error(err)
	lines := strings.Split(err.Error(), "\n")
	s.Require().Len(lines, 3)
	s.Equal("validation failed:", lines[0])
	s.True(strings.HasPrefix(lines[1], "  Name: "), lines[1])
	s.True(strings.HasPrefix(lines[2], "  Workers: "), lines[2])
}

func (s *ParseTestSuite) TestUnknownKey() {
	path := s.writeFile("typo.yaml", "name: x\nworkerz: 3\n")

	var cfg testConfig
	err := Parse(&cfg, path)
	s.Require().Error(err)
	s.Contains(err.Error(), "typo.yaml")
}

func (s *ParseTestSuite) TestMalformedYAML() {
	path := s.writeFile("broken.yaml", "name: [unterminated\n")

	var cfg testConfig
	err := Parse(&cfg, path)
	s.Require().Error(err)
	s.Contains(err.Error(), "broken.yaml")
}

func (s *ParseTestSuite) TestMissingFile() {
	var cfg testConfig
	s.Error(Parse(&cfg, filepath.Join(s.dir, "missing.yaml")))
}

func TestParseTestSuite(t *testing.T) {
	suite.Run(t, new(ParseTestSuite))
}

func TestParseNoFiles(t *testing.T) {
	var cfg testConfig
	err := Parse(&cfg)
	require.Error(t, err)
	assert.Equal(t, "no config files given", err.Error())
}

func TestValidationErrorValidField(t *testing.T) {
	assert.Nil(t, ValidationError{}.ErrForField("Name"))
	assert.Empty(t, ValidationError{}.Fields())
}
