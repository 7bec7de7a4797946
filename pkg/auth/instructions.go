package auth

import (
	"fmt"
	"strings"
)

// ShowTokenGuide displays step-by-step instructions for obtaining a bot token
func ShowTokenGuide() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("🤖 TELEGRAM BOT TOKEN GUIDE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Println("This tool needs a Telegram bot token to deliver media to your chats.")
	fmt.Println("Follow these steps to create one:")
	fmt.Println()

	fmt.Println("💬 STEP 1: Talk to BotFather")
	fmt.Println("   - Open Telegram and search for @BotFather")
	fmt.Println("   - Send /newbot and follow the prompts")
	fmt.Println("   - BotFather replies with a token like 123456789:AAEhBOweik6ad...")
	fmt.Println()

	fmt.Println("👥 STEP 2: Add the bot to your destination chats")
	fmt.Println("   - Invite the bot to every group or channel that should receive posts")
	fmt.Println("   - For channels, make the bot an administrator so it can post")
	fmt.Println()

	fmt.Println("🆔 STEP 3: Find your chat IDs")
	fmt.Println("   - Send a message in the chat, then open:")
	fmt.Println("     https://api.telegram.org/bot<TOKEN>/getUpdates")
	fmt.Println("   - The \"chat\":{\"id\":...} field is the value to put in your config")
	fmt.Println("   - Group and channel IDs are negative numbers; that is expected")
	fmt.Println()

	fmt.Println("⚠️  SECURITY WARNING:")
	fmt.Println("   • The token gives FULL control of your bot")
	fmt.Println("   • NEVER commit it or share it with anyone")
	fmt.Println("   • Store it with 'igrelay auth login' (this tool encrypts it)")
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
}

// ShowQuickTokenGuide shows a condensed version for experienced users
func ShowQuickTokenGuide() {
	fmt.Println("\n🤖 Quick Guide: @BotFather → /newbot → copy token → igrelay auth login")
	fmt.Println("   Chat IDs: https://api.telegram.org/bot<TOKEN>/getUpdates")
	fmt.Println("   Type 'help' for detailed instructions")
}
