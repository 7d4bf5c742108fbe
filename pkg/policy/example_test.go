package policy_test

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfroyo/syringe/pkg/compiler"
	"github.com/openfroyo/syringe/pkg/engine"
	"github.com/openfroyo/syringe/pkg/policy"
	"github.com/openfroyo/syringe/pkg/token"
)

func ExampleEngine_Evaluate() {
	ctx := context.Background()
	eng, err := policy.NewEngine(ctx, zerolog.Nop())
	if err != nil {
		fmt.Println(err)
		return
	}

	cfg := &compiler.CompiledConfig{
		Services: map[string]engine.ServiceDef{
			"mailer": {Class: "App\\Mailer", Arguments: []any{token.ServiceMarker("transport")}},
		},
	}

	result, err := eng.Evaluate(ctx, cfg)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("allowed:", result.Allowed)
	for _, v := range result.Violations {
		fmt.Printf("%s %s: %s\n", v.Severity, v.Policy, v.Message)
	}
	// Output:
	// allowed: false
	// error unresolved-service: service 'mailer' references undefined service 'transport' in arguments
}
