package commands

import "github.com/spf13/cobra"

// Completion returns the completion command for shell autocompletion.
func Completion() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for edgefleet.

To load completions:

Bash:
  $ source <(edgefleet completion bash)
  # To load completions for each session, execute once:
  # Linux:
  $ edgefleet completion bash > /etc/bash_completion.d/edgefleet
  # macOS:
  $ edgefleet completion bash > $(brew --prefix)/etc/bash_completion.d/edgefleet

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  # To load completions for each session, execute once:
  $ edgefleet completion zsh > "${fpath[1]}/_edgefleet"
  # You will need to start a new shell for this setup to take effect.

Fish:
  $ edgefleet completion fish | source
  # To load completions for each session, execute once:
  $ edgefleet completion fish > ~/.config/fish/completions/edgefleet.fish

PowerShell:
  PS> edgefleet completion powershell | Out-String | Invoke-Expression
  # To load completions for every new session, run:
  PS> edgefleet completion powershell > edgefleet.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
