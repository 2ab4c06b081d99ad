package services

const restaurantFields = `id name description address cuisine imageUrl rating isOpen`

const menuItemFields = `id restaurantId name description price category imageUrl available`

const orderFields = `id userId restaurantId total status deliveryAddress createdAt updatedAt
	items { menuItemId name price quantity }`

const (
	queryUser = `query User($id: ID!) {
	user(id: $id) { id name email phone }
}`

	queryRestaurants = `query Restaurants {
	restaurants { ` + restaurantFields + ` }
}`

	queryRestaurant = `query Restaurant($id: ID!) {
	restaurant(id: $id) { ` + restaurantFields + ` }
}`

	queryMenu = `query Menu($restaurantId: ID!) {
	menuItems(restaurantId: $restaurantId) { ` + menuItemFields + ` }
}`

	queryMenuItem = `query MenuItem($id: ID!) {
	menuItem(id: $id) { ` + menuItemFields + ` }
}`

	queryOrders = `query Orders($userId: ID!) {
	orders(userId: $userId) { ` + orderFields + ` }
}`

	queryOrder = `query Order($id: ID!) {
	order(id: $id) { ` + orderFields + ` }
}`

	mutationPlaceOrder = `mutation PlaceOrder($input: PlaceOrderInput!) {
	placeOrder(input: $input) { ` + orderFields + ` }
}`

	subscriptionOrderUpdated = `subscription OrderUpdated($id: ID!) {
	orderUpdated(id: $id) { ` + orderFields + ` }
}`
)
