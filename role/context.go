package role

// Context is the per-user handle passed to a role's Ability and consulted
// by its server-action handlers during a night (§3's RoleContext; §4.7
// step 3: "Update shared per-player RoleContext (holds game handle and
// user_id)"). One Context is shared across a user's turn and any handlers
// their workflows invoke afterward.
type Context struct {
	Game   *Game
	UserID string
}

// Player returns the acting user's Player record, if one is seated.
func (c *Context) Player() (*Player, bool) {
	return c.Game.Player(c.UserID)
}
