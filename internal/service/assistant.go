package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"shop-assistant/internal/broker"
	"shop-assistant/internal/cart"
	"shop-assistant/internal/catalog"
	"shop-assistant/internal/checkout"
	"shop-assistant/internal/command"
	"shop-assistant/internal/models"
	"shop-assistant/internal/util"
	"shop-assistant/internal/vision"
	"shop-assistant/internal/voice"

	"go.uber.org/zap"
)

var (
	// ErrBusy is returned while an identify, price or payment call is outstanding.
	ErrBusy = errors.New("assistant is busy")
	// ErrNoFrame is returned when no camera frame could be captured.
	ErrNoFrame = errors.New("no camera frame available")
	// ErrNoItem is returned by item commands before anything was identified.
	ErrNoItem = errors.New("no item identified yet")
)

const (
	WelcomeMessage = `Welcome to your AI Shopping Assistant. Say "what is this" to identify an item, or say "help" for available commands.`

	msgUnrecognized  = "I didn't understand that command. Say 'help' to hear available voice commands."
	msgBusy          = "I'm still working on your last request. Please wait."
	msgNoFrame       = "Unable to capture image. Please ensure camera is working and try again."
	msgAnalyzing     = "Analyzing the image, please wait..."
	msgVisionError   = "Sorry, I encountered an error while analyzing the image. Please try again."
	msgUnclear       = "I cannot clearly identify this object. Please try positioning the item better in the camera frame with good lighting, and try again."
	msgLookingUp     = "Looking up price information..."
	msgPriceFirst    = "Please identify an item first before asking for its price."
	msgAddFirst      = "Please identify an item first before adding it to your cart."
	msgRemoveFirst   = "Please identify an item first, or say 'show cart' to review items you can remove."
	msgEmptyCart     = "Your cart is empty. Please add items before checking out."
	msgGuide         = "Starting checkout process. I'll guide you through each step."
	msgConfirmed     = "Order confirmed. Proceeding to payment processing."
	msgPaying        = "Processing payment. Please wait..."
	msgThankYou      = "Thank you for your purchase! Your cart has been cleared."
	msgNoCheckout    = `There is no checkout in progress. Say "checkout" to start one.`
	msgNoActiveOrder = "No active order found."
	msgStopped       = "Stopped."
)

// FrameSource captures the current camera frame.
type FrameSource interface {
	Capture(ctx context.Context) ([]byte, error)
}

// FrameFunc adapts a function to FrameSource.
type FrameFunc func(ctx context.Context) ([]byte, error)

func (f FrameFunc) Capture(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// Assistant runs the voice shopping flow of one session.
type Assistant struct {
	sessionID     string
	catalog       *catalog.Catalog
	interpreter   *command.Interpreter
	cart          *cart.Store
	checkout      *checkout.Machine
	identifier    vision.Identifier
	publisher     *broker.EventPublisher
	visionTimeout time.Duration
	logger        *zap.Logger

	busy atomic.Bool

	mu       sync.Mutex
	voice    *voice.Announcer
	frames   FrameSource
	lastItem string
	wizard   int
	inWizard bool
}

// Greet speaks the welcome message.
func (a *Assistant) Greet(ctx context.Context) error {
	return a.say(ctx, WelcomeMessage, voice.Normal)
}

// HandleTranscript interprets one recognized utterance and acts on it. The
// resolved intent is returned even when acting on it failed.
func (a *Assistant) HandleTranscript(ctx context.Context, transcript string) (command.Intent, error) {
	ctx, span := util.StartSpan(ctx, "Assistant.HandleTranscript")
	defer span.End()

	cmd, ok := a.interpreter.Parse(transcript)
	if !ok {
		util.VoiceCommandsTotal.WithLabelValues("none").Inc()
		a.logger.Debug("Unrecognized command",
			zap.String("session_id", a.sessionID),
			zap.String("transcript", transcript))
		return command.IntentNone, a.say(ctx, msgUnrecognized, voice.Normal)
	}

	util.VoiceCommandsTotal.WithLabelValues(string(cmd.Intent)).Inc()
	a.logger.Debug("Processing command",
		zap.String("session_id", a.sessionID),
		zap.String("transcript", transcript),
		zap.String("intent", string(cmd.Intent)))

	if a.CheckoutActive() {
		switch cmd.Intent {
		case command.IntentNext, command.IntentConfirm, command.IntentCheckout:
			return cmd.Intent, a.AdvanceCheckout(ctx)
		case command.IntentCancelCheckout:
			return cmd.Intent, a.CancelCheckout(ctx)
		case command.IntentStop:
			if strings.EqualFold(strings.TrimSpace(transcript), "cancel") {
				return command.IntentCancelCheckout, a.CancelCheckout(ctx)
			}
		}
	}

	var err error
	switch cmd.Intent {
	case command.IntentIdentify:
		err = a.Identify(ctx)
	case command.IntentPrice:
		err = a.Price(ctx)
	case command.IntentAdd:
		err = a.AddToCart(ctx)
	case command.IntentRemove:
		err = a.RemoveFromCart(ctx)
	case command.IntentCart:
		err = a.ReviewCart(ctx)
	case command.IntentCheckout:
		err = a.Checkout(ctx)
	case command.IntentHelp:
		err = a.say(ctx, command.HelpText(), voice.Normal)
	case command.IntentRepeat:
		err = a.announcer().Repeat(ctx)
	case command.IntentStop:
		err = a.Stop(ctx)
	case command.IntentNext, command.IntentConfirm:
		err = a.say(ctx, msgNoCheckout, voice.Normal)
	case command.IntentCancelCheckout:
		err = a.CancelCheckout(ctx)
	default:
		err = a.say(ctx, msgUnrecognized, voice.Normal)
	}
	return cmd.Intent, err
}

// Identify captures a frame, names the object in it and looks it up.
func (a *Assistant) Identify(ctx context.Context) error {
	if !a.acquire(ctx) {
		return ErrBusy
	}
	defer a.release()

	ctx, span := util.StartSpan(ctx, "Assistant.Identify")
	defer span.End()

	frame, err := a.capture(ctx)
	if err != nil {
		a.logger.Warn("Failed to capture frame", zap.String("session_id", a.sessionID), zap.Error(err))
		_ = a.say(ctx, msgNoFrame, voice.High)
		return fmt.Errorf("%w: %v", ErrNoFrame, err)
	}

	_ = a.say(ctx, msgAnalyzing, voice.High)
	id, err := a.identify(ctx, frame)
	if err != nil {
		_ = a.say(ctx, msgVisionError, voice.High)
		return err
	}

	return a.announceIdentification(ctx, id)
}

// IdentifyImage runs identification on an image supplied by the caller.
func (a *Assistant) IdentifyImage(ctx context.Context, image []byte) (vision.Identification, error) {
	if !a.acquire(ctx) {
		return vision.Identification{}, ErrBusy
	}
	defer a.release()

	_ = a.say(ctx, msgAnalyzing, voice.High)
	id, err := a.identify(ctx, image)
	if err != nil {
		_ = a.say(ctx, msgVisionError, voice.High)
		return vision.Identification{}, err
	}
	return id, a.announceIdentification(ctx, id)
}

func (a *Assistant) identify(ctx context.Context, image []byte) (vision.Identification, error) {
	if a.identifier == nil {
		return vision.Identification{}, errors.New("no object identifier configured")
	}
	ctx, cancel := context.WithTimeout(ctx, a.visionTimeout)
	defer cancel()

	id, err := a.identifier.Identify(ctx, image)
	if err != nil {
		a.logger.Error("Object identification error", zap.String("session_id", a.sessionID), zap.Error(err))
		return vision.Identification{}, err
	}
	return id, nil
}

func (a *Assistant) announceIdentification(ctx context.Context, id vision.Identification) error {
	if !id.Known() {
		return a.say(ctx, msgUnclear, voice.Normal)
	}

	a.mu.Lock()
	a.lastItem = id.Object
	a.mu.Unlock()

	product, ok := a.catalog.Find(id.Object)
	if !ok {
		return a.say(ctx, fmt.Sprintf("I can see a %s, but I don't have pricing information for this item in our database.", id.Object), voice.Normal)
	}
	return a.say(ctx, fmt.Sprintf(`I can see a %s. %s. It costs %s. Say "add to cart" to add it to your shopping cart.`,
		product.Name, product.Description, models.FormatUSD(product.Price)), voice.Normal)
}

// Price speaks the price of the last identified item.
func (a *Assistant) Price(ctx context.Context) error {
	item := a.LastItem()
	if item == "" {
		_ = a.say(ctx, msgPriceFirst, voice.Normal)
		return ErrNoItem
	}

	if !a.acquire(ctx) {
		return ErrBusy
	}
	defer a.release()

	_ = a.say(ctx, msgLookingUp, voice.High)

	product, ok := a.catalog.Find(item)
	if !ok {
		_ = a.say(ctx, fmt.Sprintf("Sorry, I don't have pricing information for %s in our database.", item), voice.Normal)
		return fmt.Errorf("%w: %s", catalog.ErrProductNotFound, item)
	}
	return a.say(ctx, fmt.Sprintf(`The %s costs %s. %s. It's in the %s section. Say "add to cart" to purchase it.`,
		product.Name, models.FormatUSD(product.Price), product.Description, product.Category), voice.Normal)
}

// AddToCart adds one unit of the last identified item.
func (a *Assistant) AddToCart(ctx context.Context) error {
	item := a.LastItem()
	if item == "" {
		_ = a.say(ctx, msgAddFirst, voice.Normal)
		return ErrNoItem
	}

	res, err := a.cart.AddItem(ctx, item)
	a.sayCartResult(ctx, res, err)
	return err
}

// RemoveFromCart removes one unit of the last identified item.
func (a *Assistant) RemoveFromCart(ctx context.Context) error {
	item := a.LastItem()
	if item == "" {
		_ = a.say(ctx, msgRemoveFirst, voice.Normal)
		return ErrNoItem
	}

	res, err := a.cart.RemoveItem(ctx, item, false)
	a.sayCartResult(ctx, res, err)
	return err
}

func (a *Assistant) sayCartResult(ctx context.Context, res cart.Result, err error) {
	if err != nil {
		_ = a.say(ctx, res.Message, voice.Normal)
		return
	}
	total := a.cart.Snapshot().Total
	_ = a.say(ctx, fmt.Sprintf("%s Your cart total is now %s.", res.Message, models.FormatUSD(total)), voice.Normal)
}

// ReviewCart speaks the cart summary.
func (a *Assistant) ReviewCart(ctx context.Context) error {
	return a.say(ctx, a.cart.Summary()+` Say "checkout" to proceed with payment.`, voice.Normal)
}

// Checkout starts a checkout over the current cart and opens the step wizard.
func (a *Assistant) Checkout(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "Assistant.Checkout")
	defer span.End()

	snap := a.cart.Snapshot()
	if snap.ItemCount == 0 {
		_ = a.say(ctx, msgEmptyCart, voice.Normal)
		return checkout.ErrEmptyCart
	}

	if !a.acquire(ctx) {
		return ErrBusy
	}
	defer a.release()

	res, err := a.checkout.StartCheckout(ctx, snap.Items)
	if err != nil {
		_ = a.say(ctx, res.Message, voice.High)
		return err
	}

	a.mu.Lock()
	a.wizard = 0
	a.inWizard = true
	a.mu.Unlock()

	a.publish(ctx, "checkout_started", func() error {
		return a.publisher.PublishCheckoutStarted(ctx, a.sessionID, *res.Order)
	})

	_ = a.say(ctx, fmt.Sprintf("%s Starting checkout for %d items totaling %s.",
		res.Message, snap.ItemCount, models.FormatUSD(snap.Total)), voice.High)
	return a.say(ctx, msgGuide, voice.High)
}

// AdvanceCheckout runs the current wizard step and moves to the next one. A
// failed payment keeps the wizard on the payment step.
func (a *Assistant) AdvanceCheckout(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "Assistant.AdvanceCheckout")
	defer span.End()

	if _, ok := a.checkout.Order(); !ok {
		_ = a.say(ctx, msgNoActiveOrder, voice.High)
		return checkout.ErrNoActiveOrder
	}

	steps := a.checkout.Steps()
	a.mu.Lock()
	idx := a.wizard
	a.mu.Unlock()
	if idx >= len(steps) {
		idx = len(steps) - 1
	}

	switch steps[idx].ID {
	case models.StepReview:
		_ = a.say(ctx, a.checkout.OrderSummary(), voice.High)
		a.completeStep(models.StepReview)

	case models.StepConfirm:
		_ = a.say(ctx, msgConfirmed, voice.High)
		a.completeStep(models.StepConfirm)

	case models.StepPayment:
		if err := a.pay(ctx); err != nil {
			return err
		}

	case models.StepComplete:
		return a.finish(ctx)
	}

	a.mu.Lock()
	if a.wizard < len(steps)-1 {
		a.wizard++
	}
	a.mu.Unlock()
	return nil
}

func (a *Assistant) pay(ctx context.Context) error {
	if !a.acquire(ctx) {
		return ErrBusy
	}
	defer a.release()

	_ = a.say(ctx, msgPaying, voice.High)
	res, err := a.checkout.ProcessPayment(ctx)
	_ = a.say(ctx, res.Message, voice.High)

	switch {
	case err == nil:
		a.publish(ctx, "payment_succeeded", func() error {
			return a.publisher.PublishPaymentSucceeded(ctx, a.sessionID, *res.Order)
		})
		return nil
	case errors.Is(err, checkout.ErrPaymentDeclined):
		a.publish(ctx, "payment_failed", func() error {
			return a.publisher.PublishPaymentFailed(ctx, a.sessionID, *res.Order, err.Error())
		})
	case errors.Is(err, checkout.ErrAlreadyPaid):
		// paid by an earlier attempt, move on to the receipt
		return nil
	}
	return err
}

func (a *Assistant) finish(ctx context.Context) error {
	_ = a.say(ctx, a.checkout.Receipt(), voice.High)

	order, ok := a.checkout.Finish()
	if !ok {
		return checkout.ErrNoActiveOrder
	}
	a.cart.Clear(ctx)

	a.mu.Lock()
	a.wizard = 0
	a.inWizard = false
	a.mu.Unlock()

	a.publish(ctx, "order_completed", func() error {
		return a.publisher.PublishOrderCompleted(ctx, a.sessionID, order)
	})
	a.logger.Info("Order completed",
		zap.String("session_id", a.sessionID),
		zap.String("order_id", order.ID))

	return a.say(ctx, msgThankYou, voice.High)
}

// CancelCheckout discards the active checkout and closes the wizard.
func (a *Assistant) CancelCheckout(ctx context.Context) error {
	res, err := a.checkout.CancelCheckout()

	a.mu.Lock()
	a.wizard = 0
	a.inWizard = false
	a.mu.Unlock()

	if err == nil {
		a.publish(ctx, "checkout_cancelled", func() error {
			return a.publisher.PublishCheckoutCancelled(ctx, a.sessionID, *res.Order)
		})
	}

	if sayErr := a.say(ctx, res.Message, voice.High); err == nil {
		return sayErr
	}
	return err
}

// Stop silences the current utterance.
func (a *Assistant) Stop(ctx context.Context) error {
	if err := a.announcer().Stop(); err != nil {
		a.logger.Warn("Failed to stop speech", zap.Error(err))
	}
	return a.say(ctx, msgStopped, voice.High)
}

// HandleRecognitionError tells the user why their speech was not understood.
func (a *Assistant) HandleRecognitionError(ctx context.Context, err error) error {
	a.logger.Debug("Speech recognition error", zap.String("session_id", a.sessionID), zap.Error(err))
	return a.say(ctx, voice.Describe(err), voice.High)
}

// CheckoutActive reports whether the step wizard is open on a live order.
func (a *Assistant) CheckoutActive() bool {
	a.mu.Lock()
	open := a.inWizard
	a.mu.Unlock()
	if !open {
		return false
	}
	_, ok := a.checkout.Order()
	return ok
}

// CurrentStep returns the wizard step the next "next" will run.
func (a *Assistant) CurrentStep() (models.CheckoutStep, bool) {
	if !a.CheckoutActive() {
		return models.CheckoutStep{}, false
	}
	steps := a.checkout.Steps()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.wizard >= len(steps) {
		return models.CheckoutStep{}, false
	}
	return steps[a.wizard], true
}

func (a *Assistant) SessionID() string { return a.sessionID }

func (a *Assistant) Cart() *cart.Store { return a.cart }

func (a *Assistant) CheckoutMachine() *checkout.Machine { return a.checkout }

func (a *Assistant) Voice() *voice.Announcer { return a.announcer() }

func (a *Assistant) Busy() bool { return a.busy.Load() }

// LastItem returns the label of the last identified object.
func (a *Assistant) LastItem() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastItem
}

// attach swaps the output and camera of the session, e.g. on reconnect.
func (a *Assistant) attach(speaker voice.Speaker, frames FrameSource) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if speaker == nil {
		speaker = voice.NewConsoleSpeaker(io.Discard)
	}
	settings := voice.DefaultSettings()
	if a.voice != nil {
		settings = a.voice.Settings()
	}
	a.voice = voice.NewAnnouncer(speaker)
	a.voice.UpdateSettings(settings)
	a.frames = frames
}

func (a *Assistant) announcer() *voice.Announcer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.voice
}

func (a *Assistant) say(ctx context.Context, text string, priority voice.Priority) error {
	return a.announcer().Say(ctx, text, priority)
}

func (a *Assistant) capture(ctx context.Context) ([]byte, error) {
	a.mu.Lock()
	frames := a.frames
	a.mu.Unlock()

	if frames == nil {
		return nil, errors.New("camera not attached")
	}
	frame, err := frames.Capture(ctx)
	if err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, errors.New("empty frame")
	}
	return frame, nil
}

func (a *Assistant) acquire(ctx context.Context) bool {
	if a.busy.CompareAndSwap(false, true) {
		return true
	}
	_ = a.say(ctx, msgBusy, voice.High)
	return false
}

func (a *Assistant) release() {
	a.busy.Store(false)
}

func (a *Assistant) completeStep(id string) {
	if _, err := a.checkout.CompleteStep(id); err != nil && !errors.Is(err, checkout.ErrStepCompleted) {
		a.logger.Warn("Failed to complete checkout step",
			zap.String("session_id", a.sessionID),
			zap.String("step", id),
			zap.Error(err))
	}
}

// publish emits a checkout event. Failures are logged; the flow never
// depends on the event bus.
func (a *Assistant) publish(ctx context.Context, name string, fn func() error) {
	if a.publisher == nil {
		return
	}
	if err := fn(); err != nil {
		a.logger.Error("Failed to publish checkout event",
			zap.String("session_id", a.sessionID),
			zap.String("event", name),
			zap.Error(err))
	}
}
