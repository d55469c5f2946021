package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"cart-service/internal/cart"
	"cart-service/internal/catalog"
	"cart-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var replayCmd = &cobra.Command{
	Use:   "replay <script.yaml>",
	Short: "Run a scripted sequence of cart operations",
	Long: `Runs the steps of a YAML script against an in-process cart engine with
no backend latency and prints the cart after every step.

Example script:

  steps:
    - op: add
      product: "2"
      quantity: 1
    - op: discount
      code: save10
    - op: undo`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		script, err := parseScript(data)
		if err != nil {
			return err
		}
		return runReplay(cmd.Context(), script, cmd.OutOrStdout())
	},
}

// Script is a replayable list of cart operations
type Script struct {
	Products []models.Product
	Steps    []Step
}

// Step is one cart operation. Fail makes the backend reject the call.
type Step struct {
	Op       string `yaml:"op"`
	Product  string `yaml:"product"`
	Item     string `yaml:"item"`
	Quantity int    `yaml:"quantity"`
	Code     string `yaml:"code"`
	Fail     bool   `yaml:"fail"`
}

// scriptProduct mirrors models.Product with a YAML friendly price
type scriptProduct struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Image string `yaml:"image"`
}

func parseScript(data []byte) (*Script, error) {
	var raw struct {
		Products []scriptProduct `yaml:"products"`
		Steps    []Step          `yaml:"steps"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(raw.Steps) == 0 {
		return nil, errors.New("script has no steps")
	}

	script := &Script{Steps: raw.Steps}
	for _, p := range raw.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("product %s: invalid price %q", p.ID, p.Price)
		}
		script.Products = append(script.Products, models.Product{
			ID:    p.ID,
			Name:  p.Name,
			Price: price,
			Image: p.Image,
		})
	}

	for i, step := range script.Steps {
		step.Op = strings.ToLower(strings.TrimSpace(step.Op))
		switch step.Op {
		case "add":
			if step.Product == "" {
				return nil, fmt.Errorf("step %d: add needs a product", i+1)
			}
		case "update", "remove":
			if step.Item == "" {
				return nil, fmt.Errorf("step %d: %s needs an item", i+1, step.Op)
			}
		case "discount", "clear", "undo":
		default:
			return nil, fmt.Errorf("step %d: unknown op %q", i+1, step.Op)
		}
		script.Steps[i] = step
	}
	return script, nil
}

// scriptBackend accepts every call unless the current step asks it to fail
type scriptBackend struct {
	fail atomic.Bool
}

var errScriptedFailure = errors.New("scripted backend failure")

func (b *scriptBackend) result() error {
	if b.fail.Load() {
		return errScriptedFailure
	}
	return nil
}

func (b *scriptBackend) AddItem(context.Context, string, models.CartLineItem) error { return b.result() }

func (b *scriptBackend) UpdateQuantity(context.Context, string, string, int) error {
	return b.result()
}

func (b *scriptBackend) RemoveItem(context.Context, string, string) error { return b.result() }

func (b *scriptBackend) ApplyDiscount(context.Context, string, string) error { return b.result() }

// stepReport is the printed form of the cart after a step
type stepReport struct {
	Step     int          `yaml:"step"`
	Op       string       `yaml:"op"`
	Items    []reportItem `yaml:"items"`
	Discount string       `yaml:"discount,omitempty"`
	Subtotal string       `yaml:"subtotal"`
	Tax      string       `yaml:"tax"`
	Shipping string       `yaml:"shipping"`
	Total    string       `yaml:"total"`
	Errors   []string     `yaml:"errors,omitempty"`
	CanUndo  bool         `yaml:"can_undo"`
}

type reportItem struct {
	ID       string `yaml:"id"`
	Quantity int    `yaml:"quantity"`
	Price    string `yaml:"price"`
}

func runReplay(ctx context.Context, script *Script, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	products := catalog.NewMock()
	if len(script.Products) > 0 {
		products = catalog.NewStatic(script.Products)
	}

	backend := &scriptBackend{}
	engine, err := cart.NewEngine(ctx, "cartctl", backend, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()

	for i, step := range script.Steps {
		backend.fail.Store(step.Fail)

		var pending *cart.Pending
		switch step.Op {
		case "add":
			product, err := products.Get(ctx, step.Product)
			if err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			quantity := step.Quantity
			if quantity == 0 {
				quantity = 1
			}
			pending = engine.AddItem(ctx, *product, quantity)
		case "update":
			pending = engine.UpdateQuantity(ctx, step.Item, step.Quantity)
		case "remove":
			pending = engine.RemoveItem(ctx, step.Item)
		case "discount":
			pending = engine.ApplyDiscount(ctx, step.Code)
		case "clear":
			pending = engine.ClearCart(ctx)
		case "undo":
			pending = engine.Undo(ctx)
		}

		state, err := pending.Wait(ctx)
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}

		if err := enc.Encode([]stepReport{report(i+1, step.Op, state, engine.CanUndo())}); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}

func report(n int, op string, state models.CartState, canUndo bool) stepReport {
	r := stepReport{
		Step:     n,
		Op:       op,
		Items:    make([]reportItem, 0, len(state.Items)),
		Discount: state.Discount.Code,
		Subtotal: state.Totals.Subtotal.StringFixed(2),
		Tax:      state.Totals.Tax.StringFixed(2),
		Shipping: state.Totals.Shipping.StringFixed(2),
		Total:    state.Totals.Total.StringFixed(2),
		CanUndo:  canUndo,
	}
	for _, item := range state.Items {
		r.Items = append(r.Items, reportItem{
			ID:       item.ID,
			Quantity: item.Quantity,
			Price:    item.UnitPrice.StringFixed(2),
		})
	}
	for _, e := range state.Errors {
		r.Errors = append(r.Errors, e.Message)
	}
	return r
}
