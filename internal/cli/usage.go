package cli

import "fmt"

func printUsage() {
	fmt.Println("adpilot: AI advertising automation agent")
	fmt.Println("Usage:")
	fmt.Println("  adpilot run [flags] -- \"your request\"")
	fmt.Println("  adpilot chat [flags]")
	fmt.Println("  adpilot tools")
	fmt.Println("  adpilot sessions <user-id>")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --config=PATH                 JSON runtime config file")
	fmt.Println("  --provider=NAME               Model provider (anthropic, openai)")
	fmt.Println("  --model=NAME                  Model override")
	fmt.Println("  --system-prompt=TEXT          Custom system prompt")
	fmt.Println("  --session=ID                  Continue an existing session")
	fmt.Println("  --user=ID                     User identifier for session indexing")
	fmt.Println("  --tools=a,b or --tools=advertising  Tool selection (see \"adpilot tools\")")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  adpilot run -- \"pause every campaign with CPA above $40\"")
	fmt.Println("  adpilot chat --provider=openai --user=acme")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  ANTHROPIC_API_KEY / OPENAI_API_KEY   Provider credentials")
	fmt.Println("  ADPILOT_PLATFORM_URL                 Ads platform base URL")
	fmt.Println("  ADPILOT_PLATFORM_API_KEY             Ads platform credential")
	fmt.Println("  ADPILOT_REDIS_ADDR                   Redis session backend")
	fmt.Println("  ADPILOT_MEMORY_PATH                  SQLite memory file")
	fmt.Println("  ADPILOT_TRACE                        Enable OpenTelemetry spans")
}
