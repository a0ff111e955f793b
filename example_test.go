package scenesync_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/scenesync"
	"github.com/aretw0/scenesync/pkg/adapters/memory"
	"github.com/aretw0/scenesync/pkg/authority"
	"github.com/aretw0/scenesync/pkg/domain"
)

// ExampleNewInProcess embeds an authority in the same process as the replica.
func ExampleNewInProcess() {
	ctx := context.Background()

	// 1. Seed the authority with a scene.
	a := authority.New(memory.NewStore())
	err := a.Put(ctx, &domain.DocumentSnapshot{
		ID:      "lobby",
		Version: 1,
		Root: domain.NodeSnapshot{
			ID: "root",
			Children: []domain.NodeSnapshot{
				{ID: "door", Fields: map[string]domain.FieldSnapshot{
					"open": {Type: domain.FieldBool, Value: "false"},
				}},
			},
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	// 2. Track the document on a replica.
	c := scenesync.NewInProcess(a)
	defer c.Close()
	if err := c.Track(ctx, "lobby"); err != nil {
		log.Fatal(err)
	}

	// 3. Open the door and add a lamp in one transaction.
	t, err := c.NewTransaction("lobby").
		Update("door", "open", true).
		Create("root", domain.NodeSpec{ID: "lamp"}).
		Build()
	if err != nil {
		log.Fatal(err)
	}
	resp, err := c.Apply(ctx, t)
	if err != nil {
		log.Fatal(err)
	}

	snap, err := c.Snapshot("lobby")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("version:", resp.Version)
	fmt.Println("door open:", snap.Root.Children[0].Fields["open"].Value)
	fmt.Println("children:", len(snap.Root.Children))
	// Output:
	// version: 2
	// door open: true
	// children: 2
}
