package mcp

// registerAllTools registers all MCP tools with the registry
func (s *Server) registerAllTools(r *Registry) {
	s.registerChatTools(r)
	s.registerJobTools(r)
	s.registerSessionTools(r)
	s.registerHistoryTools(r)
	s.registerScheduleTools(r)
}

func (s *Server) registerChatTools(r *Registry) {
	Register(r, ToolDef{
		Name: "chat",
		Description: `Send a message to the agent and wait for the final answer.

The agent runs behind an asynchronous orchestrator; this tool submits the
message, follows the job to completion, and returns the answer in one call.

Key parameters:
  message          — The message to send (required).
  session_id       — Continue an existing session. Omit to start a fresh one;
                     the response names the session so you can keep it going.
  mode             — "poll" (default) follows job status, "stream" consumes
                     incremental events. Both return the same final answer.
  timeout_seconds  — How long to wait (default 300). On timeout the job keeps
                     running; check it with the job tool.

A session holds one request at a time. Wait for the answer (or interrupt
via the session tool) before sending the next message.`,
	}, s.handleChat)
}

func (s *Server) registerJobTools(r *Registry) {
	Register(r, ToolDef{
		Name: "job",
		Description: `Inspect or cancel orchestrator jobs by job_id.

Actions:
  status  — Current lifecycle state and progress. Progress is server-reported
            and not guaranteed monotonic.
  result  — Final answer of a completed job. Errors if the job is still running.
  cancel  — Request cancellation. Safe on finished jobs; the orchestrator
            treats that as a no-op.

Job IDs come from chat responses and schedule execution history.`,
	}, s.handleJob)
}

func (s *Server) registerSessionTools(r *Registry) {
	Register(r, ToolDef{
		Name: "session",
		Description: `Manage live conversation sessions.

Actions:
  list       — List live sessions with state and activity.
  get        — Session details by session_id.
  events     — Poll buffered request events by session_id. Use since_index for
               incremental reads: pass the last index you saw, get what came
               after. Omit or pass -1 for everything buffered.
  interrupt  — Cancel the in-flight request by session_id. The session stays
               live and can take the next message.
  pause      — Stop accepting new messages; in-flight work finishes. Destroy is
               the only exit from paused.
  destroy    — Cancel any in-flight request and remove the session. History is
               kept; use the history tool to read it back.

Sessions idle out automatically; destroyed and idle-reaped sessions survive
only in history.`,
	}, s.handleSession)
}

func (s *Server) registerHistoryTools(r *Registry) {
	Register(r, ToolDef{
		Name: "history",
		Description: `Read and maintain the persisted conversation history.

Actions:
  sessions  — List persisted sessions, newest first. Optionally limit.
  messages  — Full transcript of one session by session_id.
  search    — Find messages containing query (case-insensitive substring).
  prune     — Delete ended sessions older than older_than_days, with their
              messages and jobs. Sessions still running are never pruned.

History covers live and past sessions; the session tool only sees live ones.`,
	}, s.handleHistory)
}

func (s *Server) registerScheduleTools(r *Registry) {
	Register(r, ToolDef{
		Name: "schedule",
		Description: `Manage scheduled prompts — cron-based recurring agent runs.

Actions:
  create   — Create a schedule. Requires name, cron_expr (5-field), prompt.
  list     — List schedules. Pass enabled to filter by status.
  get      — Schedule details by schedule_id, including the pinned session.
  update   — Update a schedule. Pass only fields to change.
  delete   — Delete a schedule and its execution history.
  trigger  — Run a schedule immediately. Does not advance the cron timetable.
  history  — Execution history, newest first. Optionally limit.

Each run submits the prompt as a normal chat. session_behavior "resume"
(default) pins the session so runs share context; "new" starts fresh each
time. overlap_behavior controls what happens when a run is still going at
the next tick: "skip" records a skipped execution, "queue" runs once more
after the current run, "parallel" just starts another.`,
	}, s.handleSchedule)
}
