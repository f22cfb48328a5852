package main

import (
	"errors"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// errAborted is returned when the user interrupts a prompt.
var errAborted = errors.New("wizard aborted")

// prompter asks the user for input. The survey implementation drives a real
// terminal; tests script the answers.
type prompter interface {
	Input(message, def string) (string, error)
	Select(message string, options []string, def string) (string, error)
	Confirm(message string, def bool) (bool, error)
}

type surveyPrompter struct{}

func (surveyPrompter) Input(message, def string) (string, error) {
	var out string
	err := survey.AskOne(&survey.Input{Message: message, Default: def}, &out)
	return out, translateSurveyErr(err)
}

func (surveyPrompter) Select(message string, options []string, def string) (string, error) {
	var out string
	prompt := &survey.Select{Message: message, Options: options, PageSize: 12}
	if contains(options, def) {
		prompt.Default = def
	}
	err := survey.AskOne(prompt, &out)
	return out, translateSurveyErr(err)
}

func (surveyPrompter) Confirm(message string, def bool) (bool, error) {
	var out bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &out)
	return out, translateSurveyErr(err)
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return errAborted
	}
	return err
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
