/*
Package scenesync keeps replicas of scene documents consistent with an
authoritative copy.

A scene document is a tree of nodes carrying typed fields. Edits are grouped
into transactions: update-only transactions are applied to the local tree
immediately (precommit) and undone if the authority declines them, while
transactions that create or delete nodes wait for the authority's answer.

Connect to a running authority over HTTP:

	c := scenesync.Connect("http://localhost:8080")
	defer c.Close()

	if err := c.Track(ctx, "lobby"); err != nil {
		return err
	}
	t, err := c.NewTransaction("lobby").
		Update("door", "open", true).
		Build()
	if err != nil {
		return err
	}
	resp, err := c.Apply(ctx, t)

Dial reaches an authority that requires a bearer token, optionally
submitting over a single multiplexed WebSocket:

	c, err := scenesync.Dial(ctx, scenesync.Remote{
		BaseURL:   "https://scenes.example.com",
		Token:     token,
		WebSocket: true,
	})

Or embed the authority in the same process with NewInProcess.
*/
package scenesync
