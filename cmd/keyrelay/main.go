// keyrelay is an account-aware relay for the Anthropic Messages API.
//
// It listens on a local port and forwards every request to the active
// account's base URL, injecting that account's API key. Switching the active
// account takes effect on the next request without restarting clients.
//
// Usage:
//
//	# Start the relay and the management API
//	keyrelay serve
//
//	# Register and switch accounts
//	keyrelay accounts add --name work --base-url https://api.anthropic.com --api-key sk-ant-...
//	keyrelay accounts activate <id>
//
//	# Back up the settings file
//	keyrelay backup create
//
//	# Show token usage per account
//	keyrelay usage summary
package main

func main() {
	Execute()
}
