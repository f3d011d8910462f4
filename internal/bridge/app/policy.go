package app

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/service"
)

// PolicyConfig is the exchange policy. In a file it looks like:
//
//	scopes: [read, write]
//	audiences: [https://api.example.com]
//	subject_token_types: [urn:ietf:params:oauth:token-type:access_token]
//	session:
//	  access_token:
//	    tenant: ${TENANT_ID}
type PolicyConfig struct {
	Scopes            []string `yaml:"scopes" validate:"dive,required"`
	Audiences         []string `yaml:"audiences" validate:"dive,required"`
	SubjectTokenTypes []string `yaml:"subject_token_types" validate:"dive,required"`
	ActorTokenTypes   []string `yaml:"actor_token_types" validate:"dive,required"`
	Session           struct {
		AccessToken map[string]any `yaml:"access_token"`
	} `yaml:"session"`
}

// LoadPolicyFile reads a YAML policy. $VAR and ${VAR} references are
// expanded from the environment before parsing.
func LoadPolicyFile(path string) (PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PolicyConfig{}, fmt.Errorf("read policy file: %w", err)
	}

	var policy PolicyConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &policy); err != nil {
		return PolicyConfig{}, fmt.Errorf("unmarshal policy file: %w", err)
	}

	if err := validator.New().Struct(policy); err != nil {
		return PolicyConfig{}, fmt.Errorf("validate policy file: %w", err)
	}

	return policy, nil
}

// Overlay returns p with empty lists filled from base.
func (p PolicyConfig) Overlay(base PolicyConfig) PolicyConfig {
	if len(p.Scopes) == 0 {
		p.Scopes = base.Scopes
	}
	if len(p.Audiences) == 0 {
		p.Audiences = base.Audiences
	}
	if len(p.SubjectTokenTypes) == 0 {
		p.SubjectTokenTypes = base.SubjectTokenTypes
	}
	if len(p.ActorTokenTypes) == 0 {
		p.ActorTokenTypes = base.ActorTokenTypes
	}
	if len(p.Session.AccessToken) == 0 {
		p.Session.AccessToken = base.Session.AccessToken
	}
	return p
}

// ServicePolicy converts the config into the validator's policy.
func (p PolicyConfig) ServicePolicy() *service.Policy {
	return &service.Policy{
		AllowedScopes:     p.Scopes,
		AllowedAudiences:  p.Audiences,
		SubjectTokenTypes: p.SubjectTokenTypes,
		ActorTokenTypes:   p.ActorTokenTypes,
	}
}
