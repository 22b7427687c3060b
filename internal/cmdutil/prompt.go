package cmdutil

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"

	"pgvault/internal/integrations/docker"
)

// SelectContainer asks the operator to pick one of several candidate
// containers and returns its name.
func SelectContainer(candidates []docker.ContainerInfo) (string, error) {
	items := make([]string, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, fmt.Sprintf("%s (%s)", c.Name, c.Image))
	}

	prompt := promptui.Select{
		Label: "Multiple database containers are running, pick the target",
		Items: items,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return candidates[idx].Name, nil
}

// PromptIndex asks for a 1-based backup index within [1, max].
func PromptIndex(max int) (int, error) {
	prompt := promptui.Prompt{
		Label: fmt.Sprintf("Backup number to restore [1-%d]", max),
		Validate: func(input string) error {
			n, err := strconv.Atoi(input)
			if err != nil {
				return fmt.Errorf("not a number")
			}
			if n < 1 || n > max {
				return fmt.Errorf("must be between 1 and %d", max)
			}
			return nil
		},
	}
	value, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// PromptConfirm requires an explicit yes before a destructive action.
func PromptConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if err == promptui.ErrAbort {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PromptValue asks for a free-form configuration value.
func PromptValue(label, defaultValue string, mask bool) (string, error) {
	prompt := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	}
	if mask {
		prompt.Mask = '*'
	}
	return prompt.Run()
}
