// walletsim is a CLI tool for testing Quick Buy wallet flows.
// It plays the part of the browser wallet: each command sends one payment
// sheet event, so commands compose in scripts.
//
// Examples:
//
//	ID=$(walletsim start --provider apple --cart 00001 --total 120.50 -q)
//	walletsim validate "$ID"
//	walletsim contact "$ID" --country US --postal 10001
//	walletsim method "$ID" --mode standard-gross
//	walletsim authorize "$ID"
//	walletsim run --provider google --cart 00001 --total 120.50
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

// Global flags (apply to all commands)
var (
	serverURL string
	cookie    string
	quiet     bool
	noColor   bool
	verbose   bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorBlue, colorCyan, colorGray, colorBold = "", "", "", ""
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s✗ %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "walletsim",
		Short:         "Quick Buy wallet flow test tool.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if noColor {
				disableColors()
			}
		},
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Quick Buy service base URL")
	root.PersistentFlags().StringVar(&cookie, "cookie", "", "Storefront session cookie, e.g. JSESSIONID=abc")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - only output the result")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose - show full request/response")

	root.AddCommand(
		newConfigCommand(),
		newStartCommand(),
		newGetCommand(),
		newValidateCommand(),
		newContactCommand(),
		newMethodCommand(),
		newDataCommand(),
		newAuthorizeCommand(),
		newCancelCommand(),
		newRunCommand(),
	)
	return root
}

// =============================================================================
// SESSION COMMANDS
// =============================================================================

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the storefront's Quick Buy configuration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := doRequest(cmd.Context(), "GET", "/quickbuy/configuration", nil)
			if err != nil {
				return fmt.Errorf("getting configuration: %w", err)
			}

			wallets, _ := resp["digitalWalletQuickBuy"].([]interface{})
			if quiet {
				for _, w := range wallets {
					if m, ok := w.(map[string]interface{}); ok && m["enabled"] == true {
						fmt.Println(m["provider"])
					}
				}
				return nil
			}
			printSuccess("Configuration %v (%v)", resp["id"], resp["providerType"])
			for _, w := range wallets {
				if m, ok := w.(map[string]interface{}); ok {
					fmt.Printf("  - %s%v%s enabled=%v\n", colorCyan, m["provider"], colorReset, m["enabled"])
				}
			}
			return nil
		},
	}
}

type cartFlags struct {
	provider string
	code     string
	guid     string
	store    string
	total    string
	currency string
	items    int
	version  string
}

func (f *cartFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "provider", "apple", "Wallet: apple or google")
	cmd.Flags().StringVar(&f.code, "cart", "", "Cart code (required)")
	cmd.Flags().StringVar(&f.guid, "guid", "", "Cart GUID of an anonymous cart")
	cmd.Flags().StringVar(&f.store, "store", "", "Store name shown in the sheet")
	cmd.Flags().StringVar(&f.total, "total", "", "Cart total, e.g. 120.50")
	cmd.Flags().StringVar(&f.currency, "currency", "USD", "Cart currency")
	cmd.Flags().IntVar(&f.items, "items", 1, "Items to ship; 0 for a pickup order")
	cmd.Flags().StringVar(&f.version, "apple-pay-version", "", "Newest ApplePaySession version of the simulated browser")
	cmd.MarkFlagRequired("cart")
}

func (f *cartFlags) startRequest() (map[string]interface{}, error) {
	provider, err := parseProvider(f.provider)
	if err != nil {
		return nil, err
	}
	cart := map[string]interface{}{
		"code":                  f.code,
		"deliveryItemsQuantity": f.items,
		"user":                  map[string]string{"uid": "anonymous"},
	}
	if f.guid != "" {
		cart["guid"] = f.guid
	}
	if f.store != "" {
		cart["store"] = f.store
	}
	if f.total != "" {
		price := map[string]string{"value": f.total, "currencyIso": f.currency}
		cart["totalPrice"] = price
		cart["totalPriceWithTax"] = price
	}
	req := map[string]interface{}{"provider": provider, "cart": cart}
	if f.version != "" {
		req["applePayVersion"] = f.version
	}
	return req, nil
}

func newStartCommand() *cobra.Command {
	var flags cartFlags
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Open a wallet session for a cart.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := startSession(cmd.Context(), &flags)
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

func startSession(ctx context.Context, flags *cartFlags) (string, error) {
	body, err := flags.startRequest()
	if err != nil {
		return "", err
	}
	resp, err := doRequest(ctx, "POST", "/quickbuy/sessions", body)
	if err != nil {
		return "", fmt.Errorf("starting session: %w", err)
	}

	id, _ := resp["sessionId"].(string)
	if quiet {
		fmt.Println(id)
	} else {
		printSuccess("Wallet session started")
		fmt.Printf("  ID: %s%s%s\n", colorCyan, id, colorReset)
	}
	return id, nil
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show the current session state.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := doRequest(cmd.Context(), "GET", sessionPath(args[0], ""), nil)
			if err != nil {
				return fmt.Errorf("getting session: %w", err)
			}

			state, _ := resp["state"].(string)
			if quiet {
				fmt.Println(state)
				return nil
			}
			printSuccess("Session retrieved")
			fmt.Printf("  Provider: %v\n", resp["provider"])
			fmt.Printf("  State: %s%s%s (in progress: %v)\n", colorCyan, state, colorReset, resp["inProgress"])
			if tx, ok := resp["transaction"].(map[string]interface{}); ok {
				if total, ok := tx["total"].(map[string]interface{}); ok {
					fmt.Printf("  Total: %s%v %v%s\n", colorGreen, total["amount"], total["currency"], colorReset)
				}
			}
			if lastErr, ok := resp["lastError"].(map[string]interface{}); ok {
				printWarning("Last error: %v %v", lastErr["type"], lastErr["message"])
			}
			return nil
		},
	}
}

func newValidateCommand() *cobra.Command {
	var validationURL string
	cmd := &cobra.Command{
		Use:   "validate <session-id>",
		Short: "Apple Pay: validate the merchant.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateMerchant(cmd.Context(), args[0], validationURL)
		},
	}
	cmd.Flags().StringVar(&validationURL, "url", "https://apple-pay-gateway.apple.com/paymentservices/startSession", "Apple validation URL")
	return cmd
}

func validateMerchant(ctx context.Context, id, validationURL string) error {
	_, err := doRequest(ctx, "POST", sessionPath(id, "merchant-validation"), map[string]string{
		"validationURL": validationURL,
	})
	if err != nil {
		return fmt.Errorf("validating merchant: %w", err)
	}
	printSuccess("Merchant validated")
	return nil
}

type addressFlags struct {
	country string
	postal  string
	city    string
}

func (f *addressFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.country, "country", "US", "Country code")
	cmd.Flags().StringVar(&f.postal, "postal", "10001", "Postal code")
	cmd.Flags().StringVar(&f.city, "city", "New York", "City")
}

func newContactCommand() *cobra.Command {
	var addr addressFlags
	cmd := &cobra.Command{
		Use:   "contact <session-id>",
		Short: "Apple Pay: select a shipping contact and list shipping methods.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := selectContact(cmd.Context(), args[0], addr)
			return err
		},
	}
	addr.register(cmd)
	return cmd
}

// selectContact returns the first offered shipping method.
func selectContact(ctx context.Context, id string, addr addressFlags) (string, error) {
	resp, err := doRequest(ctx, "POST", sessionPath(id, "shipping-contact"), map[string]string{
		"countryCode": addr.country,
		"postalCode":  addr.postal,
		"locality":    addr.city,
	})
	if err != nil {
		return "", fmt.Errorf("selecting shipping contact: %w", err)
	}
	printSheetErrors(resp["errors"])

	methods, _ := resp["newShippingMethods"].([]interface{})
	var first string
	for i, m := range methods {
		method, ok := m.(map[string]interface{})
		if !ok {
			continue
		}
		if i == 0 {
			first, _ = method["identifier"].(string)
		}
		if quiet {
			fmt.Println(method["identifier"])
		} else {
			fmt.Printf("  - %s: %s (%v)\n", method["identifier"], method["label"], method["amount"])
		}
	}
	printTotal(resp["newTotal"])
	return first, nil
}

func newMethodCommand() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "method <session-id>",
		Short: "Apple Pay: select a shipping method.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return selectMethod(cmd.Context(), args[0], mode)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "Delivery mode code (required)")
	cmd.MarkFlagRequired("mode")
	return cmd
}

func selectMethod(ctx context.Context, id, mode string) error {
	resp, err := doRequest(ctx, "POST", sessionPath(id, "shipping-method"), map[string]string{"identifier": mode})
	if err != nil {
		return fmt.Errorf("selecting shipping method: %w", err)
	}
	printSheetErrors(resp["errors"])
	printTotal(resp["newTotal"])
	return nil
}

func newDataCommand() *cobra.Command {
	var addr addressFlags
	var option string
	cmd := &cobra.Command{
		Use:   "data <session-id>",
		Short: "Google Pay: change the shipping address or option.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return changePaymentData(cmd.Context(), args[0], addr, option)
		},
	}
	addr.register(cmd)
	cmd.Flags().StringVar(&option, "option", "", "Selected shipping option id")
	return cmd
}

func changePaymentData(ctx context.Context, id string, addr addressFlags, option string) error {
	body := map[string]interface{}{
		"callbackTrigger": "SHIPPING_ADDRESS",
		"shippingAddress": map[string]string{
			"countryCode": addr.country,
			"postalCode":  addr.postal,
			"locality":    addr.city,
		},
	}
	if option != "" {
		body["callbackTrigger"] = "SHIPPING_OPTION"
		body["shippingOptionData"] = map[string]string{"id": option}
	}
	resp, err := doRequest(ctx, "POST", sessionPath(id, "payment-data"), body)
	if err != nil {
		return fmt.Errorf("changing payment data: %w", err)
	}

	if e, ok := resp["error"].(map[string]interface{}); ok {
		printWarning("%v: %v", e["reason"], e["message"])
	}
	if params, ok := resp["newShippingOptionParameters"].(map[string]interface{}); ok {
		options, _ := params["shippingOptions"].([]interface{})
		for _, o := range options {
			if opt, ok := o.(map[string]interface{}); ok && !quiet {
				fmt.Printf("  - %s: %s\n", opt["id"], opt["label"])
			}
		}
	}
	if info, ok := resp["newTransactionInfo"].(map[string]interface{}); ok && !quiet {
		fmt.Printf("  Total: %s%v %v%s\n", colorGreen, info["totalPrice"], info["currencyCode"], colorReset)
	}
	return nil
}

func newAuthorizeCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "authorize <session-id>",
		Short: "Authorize the payment with a test token.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return authorize(cmd.Context(), args[0], email)
		},
	}
	cmd.Flags().StringVar(&email, "email", "test@example.com", "Buyer email")
	return cmd
}

func authorize(ctx context.Context, id, email string) error {
	session, err := doRequest(ctx, "GET", sessionPath(id, ""), nil)
	if err != nil {
		return fmt.Errorf("getting session: %w", err)
	}

	var body interface{}
	switch session["provider"] {
	case "APPLE_PAY":
		contact := map[string]interface{}{
			"givenName":    "Test",
			"familyName":   "Buyer",
			"emailAddress": email,
			"addressLines": []string{"150 Elgin Street"},
			"locality":     "Ottawa",
			"postalCode":   "K2P 1L4",
			"countryCode":  "CA",
		}
		body = map[string]interface{}{
			"token": map[string]interface{}{
				"paymentData": map[string]string{"version": "EC_v1", "data": "test", "signature": "test"},
			},
			"billingContact":  contact,
			"shippingContact": contact,
		}
	case "GOOGLE_PAY":
		body = map[string]interface{}{
			"email": email,
			"shippingAddress": map[string]string{
				"name":        "Test Buyer",
				"address1":    "150 Elgin Street",
				"locality":    "Ottawa",
				"postalCode":  "K2P 1L4",
				"countryCode": "CA",
			},
			"paymentMethodData": map[string]interface{}{
				"type": "CARD",
				"tokenizationData": map[string]string{
					"type":  "PAYMENT_GATEWAY",
					"token": `{"signature":"test","protocolVersion":"ECv2"}`,
				},
			},
		}
	default:
		return fmt.Errorf("unknown session provider %v", session["provider"])
	}

	resp, err := doRequest(ctx, "POST", sessionPath(id, "authorize"), body)
	if err != nil {
		return fmt.Errorf("authorizing payment: %w", err)
	}

	redirect, _ := resp["redirectUrl"].(string)
	failed := resp["status"] == float64(1) || resp["transactionState"] == "ERROR"
	if quiet {
		fmt.Println(redirect)
		return nil
	}
	switch {
	case failed:
		printSheetErrors(resp["errors"])
		if e, ok := resp["error"].(map[string]interface{}); ok {
			printError("%v", e["message"])
		}
		printWarning("Payment failed")
	case redirect != "":
		printSuccess("Payment completed!")
		fmt.Printf("  Confirmation: %s%s%s\n", colorBlue, redirect, colorReset)
	default:
		printWarning("Payment accepted without order confirmation")
	}
	return nil
}

func newCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Dismiss the payment sheet.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := doRequest(cmd.Context(), "POST", sessionPath(args[0], "cancel"), nil)
			if err != nil {
				return fmt.Errorf("cancelling session: %w", err)
			}
			if quiet {
				fmt.Println(resp["state"])
				return nil
			}
			printSuccess("Session %v", resp["state"])
			return nil
		},
	}
}

// =============================================================================
// RUN COMMAND
// =============================================================================

func newRunCommand() *cobra.Command {
	var flags cartFlags
	var addr addressFlags
	var email string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play a whole wallet flow: start, shipping, authorize.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			id, err := startSession(ctx, &flags)
			if err != nil {
				return err
			}

			provider, _ := parseProvider(flags.provider)
			pickup := flags.items == 0
			switch provider {
			case "APPLE_PAY":
				if err := validateMerchant(ctx, id, "https://apple-pay-gateway.apple.com/paymentservices/startSession"); err != nil {
					return err
				}
				if !pickup {
					mode, err := selectContact(ctx, id, addr)
					if err != nil {
						return err
					}
					if mode != "" {
						if err := selectMethod(ctx, id, mode); err != nil {
							return err
						}
					}
				}
			case "GOOGLE_PAY":
				if !pickup {
					if err := changePaymentData(ctx, id, addr, ""); err != nil {
						return err
					}
				}
			}
			return authorize(ctx, id, email)
		},
	}
	flags.register(cmd)
	addr.register(cmd)
	cmd.Flags().StringVar(&email, "email", "test@example.com", "Buyer email")
	return cmd
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(serverURL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")
}

func doRequest(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req := newClient().R().SetContext(ctx)

	var reqJSON []byte
	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		req.SetHeader("Content-Type", "application/json").SetBody(reqJSON)
	}
	if cookie != "" {
		req.SetHeader("Cookie", cookie)
	}

	if !quiet {
		printRequest(method, path, reqJSON)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if !quiet {
		printResponse(resp.StatusCode(), resp.Body(), resp.Time())
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), errorMessage(resp.Body()))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return result, nil
}

// errorMessage extracts "CODE: message" from an error response body.
func errorMessage(body []byte) string {
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error.Code == "" {
		return string(body)
	}
	return resp.Error.Code + ": " + resp.Error.Message
}

func sessionPath(id, event string) string {
	p := "/quickbuy/sessions/" + url.PathEscape(id)
	if event != "" {
		p += "/" + event
	}
	return p
}

func parseProvider(s string) (string, error) {
	switch strings.ToLower(s) {
	case "apple", "apple_pay", "applepay":
		return "APPLE_PAY", nil
	case "google", "google_pay", "googlepay":
		return "GOOGLE_PAY", nil
	default:
		return "", fmt.Errorf("unknown provider %q (use: apple, google)", s)
	}
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}

	output := pretty.String()
	if !verbose {
		lines := strings.Split(output, "\n")
		if len(lines) > 30 {
			lines = append(lines[:25], fmt.Sprintf("%s  %s(%d more lines, use -v for full output)%s", prefix, colorGray, len(lines)-25, colorReset))
			output = strings.Join(lines, "\n")
		}
	}
	fmt.Println(output)
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Printf("%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

// printSheetErrors shows Apple Pay sheet errors.
func printSheetErrors(v interface{}) {
	if quiet {
		return
	}
	errs, _ := v.([]interface{})
	for _, e := range errs {
		if m, ok := e.(map[string]interface{}); ok {
			printError("%v: %v", m["code"], m["message"])
		}
	}
}

func printTotal(v interface{}) {
	if quiet {
		return
	}
	if total, ok := v.(map[string]interface{}); ok {
		fmt.Printf("  Total: %s%v %v%s\n", colorGreen, total["label"], total["amount"], colorReset)
	}
}
