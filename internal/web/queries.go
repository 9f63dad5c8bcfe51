package web

const (
	registerMutation = `mutation Register($input: RegisterInput!) {
  register(input: $input) { message }
}`

	loginMutation = `mutation Login($input: LoginInput!) {
  login(input: $input) {
    accessToken
    refreshToken
    user { id email name }
  }
}`

	verifyEmailMutation = `mutation VerifyEmail($token: String!) {
  verifyEmail(token: $token) { message }
}`

	requestPasswordResetMutation = `mutation RequestPasswordReset($email: String!) {
  requestPasswordReset(email: $email) { message }
}`

	resetPasswordMutation = `mutation ResetPassword($token: String!, $password: String!) {
  resetPassword(token: $token, password: $password) { message }
}`

	todosQuery = `query Todos {
  todos { id title description completed dueDate isOverdue createdAt }
}`

	createTodoMutation = `mutation CreateTodo($input: CreateTodoInput!) {
  createTodo(input: $input) { id }
}`

	updateTodoMutation = `mutation UpdateTodo($id: ID!, $input: UpdateTodoInput!) {
  updateTodo(id: $id, input: $input) { id }
}`

	deleteTodoMutation = `mutation DeleteTodo($id: ID!) {
  deleteTodo(id: $id) { message }
}`
)

type messageData struct {
	Message string `json:"message"`
}

type todoItem struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Completed   bool    `json:"completed"`
	DueDate     *string `json:"dueDate"`
	IsOverdue   bool    `json:"isOverdue"`
	CreatedAt   string  `json:"createdAt"`
}
