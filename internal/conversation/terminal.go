package conversation

import (
	"fmt"

	"github.com/manifoldco/promptui"
)

// TerminalIO reads answers from the interactive terminal.
type TerminalIO struct{}

func (TerminalIO) ReadAnswer(question string) (string, error) {
	prompt := promptui.Prompt{Label: question}
	return prompt.Run()
}

func (TerminalIO) Say(text string) {
	fmt.Println(text)
}
