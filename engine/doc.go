// Package engine hosts the agent loops of one process.
//
// An Engine resolves each registered agent.Definition against the project
// configuration (the agents.<name> section is the agent's global config),
// then runs one loop per agent:
//
//	eng := engine.New(func(o *engine.Options) { o.Project = prepared.Server })
//	_ = eng.Register(ada)
//	_ = eng.Start(ctx)
//	_ = eng.Push("ada", core.MessagePercept("hello"))
//	...
//	_ = eng.Stop(ctx)
//
// Agents are isolated: a failing turn of one agent never affects another.
// Transcripts live in the shared session store under the agent name.
package engine
