package graph_test

import (
	"fmt"
	"os"

	"github.com/matzehuels/orgraph/pkg/graph"
)

func ExampleBuilder_Build() {
	b := graph.NewBuilder("@acme/", nil)
	g := b.Build(map[string][]string{
		"checkout":       {"@acme/ui", "@acme/payments", "react"},
		"storefront":     {"@acme/ui"},
		"@acme/payments": {"@acme/http"},
	})

	for _, n := range g.Nodes {
		fmt.Printf("%s depth=%d count=%d\n", n.ID, n.Depth, n.Count)
	}
	// Output:
	// checkout depth=0 count=0
	// storefront depth=0 count=0
	// @acme/payments depth=1 count=1
	// @acme/ui depth=1 count=2
	// @acme/http depth=2 count=1
}

func ExampleWriteJSON() {
	g := graph.NewBuilder("@acme/", nil).Build(map[string][]string{
		"checkout": {"@acme/ui"},
	})
	if err := graph.WriteJSON(os.Stdout, g); err != nil {
		fmt.Println("error:", err)
	}
	// Output:
	// {
	//   "nodes": [
	//     {
	//       "id": "checkout",
	//       "depth": 0,
	//       "count": 0
	//     },
	//     {
	//       "id": "@acme/ui",
	//       "depth": 1,
	//       "count": 1
	//     }
	//   ],
	//   "links": [
	//     {
	//       "source": "checkout",
	//       "target": "@acme/ui",
	//       "count": 1
	//     }
	//   ]
	// }
}
